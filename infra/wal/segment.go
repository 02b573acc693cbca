package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const segmentPattern = "segment-%06d.wal"

type segment struct {
	file   *os.File
	offset int64
}

func openSegment(dir string, index int) (*segment, error) {
	path := filepath.Join(dir, fmt.Sprintf(segmentPattern, index))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &segment{file: f, offset: info.Size()}, nil
}

func (s *segment) append(b []byte) error {
	n, err := s.file.Write(b)
	if err != nil {
		return err
	}
	s.offset += int64(n)
	return nil
}

func (s *segment) sync() error {
	return s.file.Sync()
}

func (s *segment) close() error {
	return s.file.Close()
}

// listSegments returns the segment file paths in dir, oldest first.
func listSegments(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "segment-*.wal"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// lastSegmentIndex returns the highest existing segment index in dir,
// or -1 when the directory holds none.
func lastSegmentIndex(dir string) (int, error) {
	paths, err := listSegments(dir)
	if err != nil {
		return -1, err
	}
	if len(paths) == 0 {
		return -1, nil
	}
	var idx int
	_, err = fmt.Sscanf(filepath.Base(paths[len(paths)-1]), segmentPattern, &idx)
	if err != nil {
		return -1, err
	}
	return idx, nil
}
