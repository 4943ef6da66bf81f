// Package config loads the INI-style configuration files used by the
// edge and forge processes, adapted from the ingest config loader: read
// a primary file, then overlay any *.conf fragments from a companion
// directory so operators can split configuration across files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gravwell/gcfg"
)

const (
	maxConfigSize int64  = 4 * 1024 * 1024
	confExt       string = `.conf`
)

var (
	ErrConfigFileTooLarge = errors.New("config file is too large")
	ErrFailedFileRead     = errors.New("failed to read entire config file")
	ErrIsNotDirectory     = errors.New("path is not a directory")
)

// LoadFile reads a config file and unmarshals it into v via gcfg.
func LoadFile(v interface{}, p string) (err error) {
	var fin *os.File
	var fi os.FileInfo
	var n int64
	if fin, err = os.Open(p); err != nil {
		return
	} else if fi, err = fin.Stat(); err != nil {
		fin.Close()
		return
	} else if fi.Size() > maxConfigSize {
		fin.Close()
		return ErrConfigFileTooLarge
	}
	bb := bytes.NewBuffer(nil)
	if n, err = io.Copy(bb, fin); err != nil {
		fin.Close()
		return
	} else if n != fi.Size() {
		fin.Close()
		return ErrFailedFileRead
	} else if err = fin.Close(); err == nil {
		err = LoadBytes(v, bb.Bytes())
	}
	return
}

// LoadOverlays scans dir for *.conf fragments and merges each into v in
// directory order, layering on top of whatever LoadFile already set.
func LoadOverlays(v interface{}, dir string) (err error) {
	if dir == `` || v == nil {
		return
	}
	var fi os.FileInfo
	if fi, err = os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			err = nil
		}
		return
	} else if !fi.IsDir() {
		return ErrIsNotDirectory
	}
	var dents []os.DirEntry
	if dents, err = os.ReadDir(dir); err != nil {
		return
	}
	for _, dent := range dents {
		if !dent.Type().IsRegular() || filepath.Ext(dent.Name()) != confExt {
			continue
		}
		p := filepath.Join(dir, dent.Name())
		if err = LoadFile(v, p); err != nil {
			return fmt.Errorf("failed to load %q: %w", p, err)
		}
	}
	return
}

// LoadBytes parses raw INI bytes into v.
func LoadBytes(v interface{}, b []byte) error {
	if int64(len(b)) > maxConfigSize {
		return ErrConfigFileTooLarge
	}
	return gcfg.ReadStringInto(v, string(b))
}
