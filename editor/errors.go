package editor

import (
	"errors"
	"fmt"
	"strings"

	bridgeerrors "github.com/cmdbridge/cmdbridge/domain/errors"
)

// ErrNoMapping is returned by Feed when no mapping matches the keys.
var ErrNoMapping = errors.New("no mapping")

func execError(line, code, format string, args ...any) error {
	return &bridgeerrors.ExecError{
		Command: strings.TrimSpace(line),
		Code:    code,
		Err:     fmt.Errorf(format, args...),
	}
}
