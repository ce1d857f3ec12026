package tsmd

import (
	"errors"
	"fmt"
	"os/exec"
)

// CheckBinaries verifies each named executable is resolvable.
func CheckBinaries(names ...string) error {
	var errs []error
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			errs = append(errs, fmt.Errorf("%s not found: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
