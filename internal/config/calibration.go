package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"cloudpico-positioning/internal/geo"
)

// Calibration is the on-disk form of the reference point and antenna correction.
//
//	reference:
//	  longitude: -87.94334921
//	  latitude: 29.10798914
//	correction:
//	  north_ft: 70.01
//	  east_ft: 12.02
type Calibration struct {
	Reference  geo.Point      `yaml:"reference"`
	Correction geo.Correction `yaml:"correction"`
}

// LoadCalibration reads path over defaults; keys missing from the file keep
// their default value.
func LoadCalibration(path string, defaults Calibration) (Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Calibration{}, fmt.Errorf("read calibration file: %w", err)
	}

	cal := defaults
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cal); err != nil && !errors.Is(err, io.EOF) {
		return Calibration{}, fmt.Errorf("parse calibration file %s: %w", path, err)
	}
	return cal, nil
}
