package recombine

import (
	"context"
	"os"

	"github.com/Shubhankar1/VBVA/internal/ffmpeg"
)

// commandRunner executes external commands and returns their combined output.
type commandRunner interface {
	CombinedOutput(ctx context.Context, name string, args []string) ([]byte, error)
}

// tempDirCreator creates temporary directories.
type tempDirCreator interface {
	MkdirTemp(dir, pattern string) (string, error)
}

// fileWriter writes files.
type fileWriter interface {
	WriteFile(name string, data []byte, perm os.FileMode) error
}

// fileRemover removes files and directories.
type fileRemover interface {
	RemoveAll(path string) error
}

// fileRenamer moves files.
type fileRenamer interface {
	Rename(oldpath, newpath string) error
}

// --- Default implementations using real OS functions ---

type osCommandRunner struct{}

func (osCommandRunner) CombinedOutput(ctx context.Context, name string, args []string) ([]byte, error) {
	return ffmpeg.RunOutput(ctx, name, args)
}

type osTempDirCreator struct{}

func (osTempDirCreator) MkdirTemp(dir, pattern string) (string, error) {
	return os.MkdirTemp(dir, pattern)
}

type osFileWriter struct{}

func (osFileWriter) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

type osFileRemover struct{}

func (osFileRemover) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

type osFileRenamer struct{}

func (osFileRenamer) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}
