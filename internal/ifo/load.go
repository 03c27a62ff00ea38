package ifo

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/s0up4200/go-dvdread/internal/fs"
)

// ReadVMG reads VIDEO_TS.IFO, falling back to VIDEO_TS.BUP.
func ReadVMG(src fs.Source) (*VMG, error) {
	return load(src, "VIDEO_TS.IFO", ParseVMG)
}

// ReadVTS reads VTS_xx_0.IFO for title set n, falling back to its .BUP.
func ReadVTS(src fs.Source, n int) (*VTS, error) {
	return load(src, fmt.Sprintf("VTS_%02d_0.IFO", n), ParseVTS)
}

func load[T any](src fs.Source, name string, parse func([]byte) (*T, error)) (*T, error) {
	v, err := loadFile(src, name, parse)
	if err == nil {
		return v, nil
	}
	backup := strings.TrimSuffix(name, ".IFO") + ".BUP"
	v, bupErr := loadFile(src, backup, parse)
	if bupErr == nil {
		return v, nil
	}
	return nil, errors.Join(err, bupErr)
}

func loadFile[T any](src fs.Source, name string, parse func([]byte) (*T, error)) (*T, error) {
	rc, err := src.OpenIFO(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	v, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}
