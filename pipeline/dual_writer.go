package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-scrape-parts/models"
)

// Sink is one named destination of a FanoutWriter.
type Sink struct {
	Name   string
	Writer OutputWriter
}

// FanoutWriter sends every batch to several sinks in order.
type FanoutWriter struct {
	mu    sync.Mutex
	sinks []Sink
}

// NewFanoutWriter combines sinks; nil writers are skipped.
func NewFanoutWriter(sinks ...Sink) *FanoutWriter {
	fw := &FanoutWriter{}
	for _, s := range sinks {
		if s.Writer != nil {
			fw.sinks = append(fw.sinks, s)
		}
	}
	return fw
}

// NewDualWriter streams to CSV and JSONL side by side.
func NewDualWriter(csvFilename, jsonFilename string) (*FanoutWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV writer: %w", err)
	}
	jsonWriter, err := NewJSONWriter(jsonFilename)
	if err != nil {
		csvWriter.Close()
		return nil, fmt.Errorf("failed to create JSON writer: %w", err)
	}
	return NewFanoutWriter(Sink{"CSV", csvWriter}, Sink{"JSON", jsonWriter}), nil
}

// Write stops at the first failing sink.
func (fw *FanoutWriter) Write(records []*models.ListingRecord) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	for _, s := range fw.sinks {
		if err := s.Writer.Write(records); err != nil {
			return fmt.Errorf("%s write failed: %w", s.Name, err)
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (fw *FanoutWriter) Close() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	var errs []error
	for _, s := range fw.sinks {
		if err := s.Writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s close failed: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (fw *FanoutWriter) Validate() error {
	var errs []error
	for _, s := range fw.sinks {
		if err := s.Writer.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s validation failed: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}
