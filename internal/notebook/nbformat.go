package notebook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// cellNamespace seeds cell ids so that rebuilding a notebook yields the same file.
var cellNamespace = uuid.MustParse("1b4e28ba-2fa1-11d2-883f-0016d3cca427")

// Notebook is an nbformat 4 document.
type Notebook struct {
	Cells         []Cell         `json:"cells"`
	Metadata      map[string]any `json:"metadata"`
	Nbformat      int            `json:"nbformat"`
	NbformatMinor int            `json:"nbformat_minor"`
}

type Cell struct {
	CellType string         `json:"cell_type"`
	Id       string         `json:"id"`
	Metadata map[string]any `json:"metadata"`
	Source   []string       `json:"source"`
}

func NewNotebook() *Notebook {
	return &Notebook{
		Cells:         []Cell{},
		Metadata:      map[string]any{},
		Nbformat:      4,
		NbformatMinor: 5,
	}
}

// AddMarkdown appends a markdown cell, the source is stored as a list of lines like jupyter does.
func (n *Notebook) AddMarkdown(source string) {
	n.Cells = append(n.Cells, Cell{
		CellType: "markdown",
		Metadata: map[string]any{},
		Source:   splitLines(source),
	})
}

func splitLines(source string) []string {
	if source == "" {
		return []string{}
	}
	lines := strings.SplitAfter(source, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Encode serializes the notebook, cell ids are derived from key so the output is stable.
func (n *Notebook) Encode(key string) ([]byte, error) {
	for i := range n.Cells {
		n.Cells[i].Id = uuid.NewSHA1(cellNamespace, []byte(fmt.Sprintf("%s#%d", key, i))).String()
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", " ")
	err := encoder.Encode(n)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write encodes the notebook to path, creating parent directories as needed.
func (n *Notebook) Write(path string) error {
	contents, err := n.Encode(path)
	if err != nil {
		return err
	}
	err = os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return err
	}
	return os.WriteFile(path, contents, 0644)
}
