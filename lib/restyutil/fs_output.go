package restyutil

import (
	"log/slog"
	"os"
	"path/filepath"
)

// FilesystemOutput dumps request/response pairs into a directory, one file
// per exchange. The directory is wiped on creation so a run only contains
// its own traffic.
type FilesystemOutput struct {
	directory string
}

func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	err := os.RemoveAll(dir)
	if err != nil {
		return FilesystemOutput{}, err
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}
