package setup

import (
	"errors"
	"fmt"

	"github.com/torosent/fanload/internal/api"
	"github.com/torosent/fanload/internal/auth"
	"github.com/torosent/fanload/internal/loadtool"
)

// FetchError reports a failed read of one reference resource.
type FetchError struct {
	Resource string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Resource, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// EmitError reports that the data files could not be written.
type EmitError struct {
	Err error
}

func (e *EmitError) Error() string {
	return fmt.Sprintf("emit data files: %v", e.Err)
}

func (e *EmitError) Unwrap() error {
	return e.Err
}

// LoadToolError reports a load tool run that did not succeed.
type LoadToolError struct {
	Err error
}

func (e *LoadToolError) Error() string {
	return e.Err.Error()
}

func (e *LoadToolError) Unwrap() error {
	return e.Err
}

// ExitCode returns the child's exit status, or 1 when it never exited
// normally.
func (e *LoadToolError) ExitCode() int {
	var exitErr *loadtool.ExitError
	if errors.As(e.Err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}
	return 1
}

// Message returns the operator-facing message for a setup failure.
func Message(err error) string {
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		if authErr.Role == auth.RoleManager {
			return "Erro ao fazer login como manager"
		}
		return "Erro ao fazer login como root"
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		switch fetchErr.Resource {
		case api.ResourceFans:
			return "Erro ao obter a lista de fãs"
		case api.ResourceSchedules:
			return "Erro ao obter a lista de programações"
		case api.ResourceVideos:
			return "Erro ao obter a lista de vídeos"
		}
		return "Erro ao obter " + fetchErr.Resource
	}

	var emitErr *EmitError
	if errors.As(err, &emitErr) {
		return "Erro ao gravar os arquivos de dados"
	}

	return "Erro no processo"
}
