package parser

import (
	"archive/zip"
	"fmt"
	"io"
)

// conversationsFileNames are the paths conversations.json is known to
// live at across export archive layouts, checked in order.
var conversationsFileNames = []string{
	"conversations.json",
	"conversations/conversations.json",
}

// readConversationsFile locates and reads the archive's conversation-list
// file (spec.md §3 "Archive format consumed").
func readConversationsFile(archivePath string) ([]byte, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	for _, name := range conversationsFileNames {
		for _, f := range r.File {
			if f.Name != name {
				continue
			}
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", name, err)
			}
			defer rc.Close()

			data, err := io.ReadAll(rc)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", name, err)
			}
			return data, nil
		}
	}
	return nil, fmt.Errorf("archive does not contain a conversations.json entry")
}
