package hostname

import (
	"os"

	"github.com/pkg/errors"
)

// Resolver returns the host's network name. It is called on every use; callers must not cache the result.
type Resolver func() (string, error)

// System resolves the host name through the operating system.
func System() (string, error) {
	name, err := os.Hostname()
	if err != nil {
		return "", errors.Wrap(err, "unable to resolve host name")
	}
	return name, nil
}
