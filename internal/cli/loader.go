package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/omnistate/internal/compiler"
)

// LoadResult contains a compiled schema and where it came from.
type LoadResult struct {
	Spec      *compiler.StoreSpec
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// LoadError represents an error that occurred during schema loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSchema loads and compiles the store schema at path. A directory
// loads every CUE file of its package; a file loads alone.
//
// Compilation stops at the first error. Validation is left to the caller.
func LoadSchema(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema: %v", err)}
	}

	var (
		cfg   *load.Config
		args  []string
		files []string
	)
	if info.IsDir() {
		files, err = FindCUEFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(files) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
		cfg = &load.Config{Dir: path}
		args = []string{"."}
	} else {
		if filepath.Ext(path) != ".cue" {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("not a CUE file: %s", path)}
		}
		files = []string{path}
		cfg = &load.Config{Dir: filepath.Dir(path)}
		args = []string{filepath.Base(path)}
	}

	instances := load.Instances(args, cfg)
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	spec, err := compiler.CompileStore(value.LookupPath(cue.ParsePath("store")))
	if err != nil {
		return nil, convertCompileError(err)
	}

	return &LoadResult{
		Spec:      spec,
		CUEValue:  value,
		FileCount: len(files),
	}, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeCompileFailed,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeCompileFailed,
		Message: err.Error(),
	}
}

// Error code constants - unified across all CLI commands. Schema
// validation codes (E1xx) come from compiler.Validate.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeScanError     = "E002" // Directory scan error
	ErrCodeNoFiles       = "E003" // No CUE files found
	ErrCodeLoadFailed    = "E004" // CUE load failed
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeBuildFailed   = "E006" // CUE build failed
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeCompileFailed = "E008" // Schema does not compile
	ErrCodeBadArgument   = "E009" // Malformed command argument
	ErrCodeAdapter       = "E010" // Adapter read or write failed
)
