package parser

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Archive is the in-memory snapshot of one export: the projects
// document and the conversations document.
type Archive struct {
	Projects      []Project
	Conversations []Conversation
}

// LoadArchive reads both input documents. Any error is fatal for
// the run and names the offending file.
func LoadArchive(
	projectsPath, conversationsPath string,
) (Archive, error) {
	projects, err := LoadProjects(projectsPath)
	if err != nil {
		return Archive{}, err
	}
	convs, err := LoadConversations(conversationsPath)
	if err != nil {
		return Archive{}, err
	}
	return Archive{Projects: projects, Conversations: convs}, nil
}

// LoadProjects reads a projects document.
func LoadProjects(path string) ([]Project, error) {
	var projects []Project
	if err := decodeFile(path, &projects); err != nil {
		return nil, fmt.Errorf("projects file: %w", err)
	}
	return projects, nil
}

// LoadConversations reads a conversations document.
func LoadConversations(path string) ([]Conversation, error) {
	var convs []Conversation
	if err := decodeFile(path, &convs); err != nil {
		return nil, fmt.Errorf("conversations file: %w", err)
	}
	return convs, nil
}

func decodeFile(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := DecodeDocument(bufio.NewReader(f), v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// DecodeDocument decodes a single JSON document from r into v and
// rejects trailing data.
func DecodeDocument(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after top-level value")
	}
	return nil
}
