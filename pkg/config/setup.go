package config

import (
	"os"
	"sync"

	"github.com/serum-errors/go-serum"

	"github.com/HDFGroup/hdf5-json/h5api"
)

/*
	Environment variables and the working directory are read once, into State,
	and everything downstream is configured from a State value.
	Tests build their own State instead of touching the process environment.
*/

type State struct {
	Env              map[string]string
	HomeDirectory    string
	WorkingDirectory string
	TempDir          string
}

var (
	globalm sync.RWMutex
	global  State
)

// ReloadGlobalState will fetch all values for internal state.
// ReloadGlobalState will halt on the first error.
//
// Errors:
//
//   - h5json-error-initialization -- loading a value failed
func ReloadGlobalState() error {
	globalm.Lock()
	defer globalm.Unlock()
	global.Env = make(map[string]string, len(envKeys))
	for _, key := range envKeys {
		if v, ok := os.LookupEnv(key); ok {
			global.Env[key] = v
		}
	}
	loadFuncs := []func() error{
		loadWd,
		loadUserHome,
		loadTempDir,
	}
	for _, loadFunc := range loadFuncs {
		if err := loadFunc(); err != nil {
			return err
		}
	}
	return nil
}

// NewState will create a copy of the global state.
// The returned state can be modified without affecting anything else.
func NewState() State {
	globalm.RLock()
	defer globalm.RUnlock()
	result := global
	result.Env = make(map[string]string, len(global.Env))
	for k, v := range global.Env {
		result.Env[k] = v
	}
	return result
}

// init will load all guarded values and will terminate execution if an error occurs.
func init() {
	if err := ReloadGlobalState(); err != nil {
		serr, ok := err.(serum.ErrorInterface)
		if !ok {
			serr = serum.Error(h5api.ECodeInitialization,
				serum.WithMessageLiteral("config initialization failed"),
				serum.WithCause(err),
			).(serum.ErrorInterface)
		}
		h5api.TerminalError(serr, 10)
	}
}

// loadWd loads the working directory into the stored state
// NOT concurrent safe
//
// Errors:
//
//   - h5json-error-initialization -- when the working directory path cannot be found
func loadWd() error {
	cwd, err := os.Getwd()
	if err != nil {
		return serum.Error(h5api.ECodeInitialization,
			serum.WithMessageLiteral("unable to get working directory"),
			serum.WithCause(err),
		)
	}
	global.WorkingDirectory = cwd
	return nil
}

// loadUserHome loads the user home directory into the stored state.
// A missing home is not an error; it only disables the per-user config file.
// NOT concurrent safe
func loadUserHome() error {
	dir, err := os.UserHomeDir()
	if err == nil {
		global.HomeDirectory = dir
	}
	return nil
}

// loadTempDir loads the default temporary file directory into stored state
// NOT concurrent safe
func loadTempDir() error {
	global.TempDir = os.TempDir()
	return nil
}
