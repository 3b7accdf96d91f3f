package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// InstructionsFile is the name of the job description inside a work folder.
const InstructionsFile = "instructions.json"

// JobInstructions is everything the worker needs to run one uploaded job.
type JobInstructions struct {
	FilePath     string      `json:"file_path"`     // work folder holding the source
	OriginalFile string      `json:"original_file"` // source name inside FilePath
	Hash         string      `json:"hash"`          // sha256 of the source
	ReceivedAt   time.Time   `json:"received_at"`
	Job          CombinedJob `json:"job"`
}

// InputPath is the uploaded source inside the work folder.
func (i JobInstructions) InputPath() string {
	return filepath.Join(i.FilePath, i.OriginalFile)
}

// WriteInstructions stores instr in dir. The file is written beside its final
// name and renamed, so a reader never sees a partial document.
func WriteInstructions(dir string, instr JobInstructions) error {
	data, err := json.MarshalIndent(instr, "", "  ")
	if err != nil {
		return fmt.Errorf("encode instructions: %w", err)
	}

	tmp, err := os.CreateTemp(dir, InstructionsFile+".*")
	if err != nil {
		return fmt.Errorf("create instructions: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write instructions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write instructions: %w", err)
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, InstructionsFile))
}

// ReadInstructions loads the instructions of the work folder dir.
func ReadInstructions(dir string) (JobInstructions, error) {
	data, err := os.ReadFile(filepath.Join(dir, InstructionsFile))
	if err != nil {
		return JobInstructions{}, fmt.Errorf("read instructions: %w", err)
	}

	var instr JobInstructions
	if err := json.Unmarshal(data, &instr); err != nil {
		return JobInstructions{}, fmt.Errorf("decode instructions: %w", err)
	}
	if instr.Hash == "" || instr.OriginalFile == "" {
		return JobInstructions{}, errors.New("instructions missing hash or source name")
	}
	return instr, nil
}
