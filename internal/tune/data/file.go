package data

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadSamples reads training samples from a JSON array file, a JSON-lines
// file (.jsonl) or a directory of such files. Directory entries are read in
// name order.
func LoadSamples(path string) ([]TrainingSample, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat samples %s: %w", path, err)
	}
	if !info.IsDir() {
		return loadSamplesFile(path)
	}

	var files []string
	err = filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		ext := strings.ToLower(filepath.Ext(p))
		if !fi.IsDir() && (ext == ".json" || ext == ".jsonl") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan samples directory %s: %w", path, err)
	}
	sort.Strings(files)

	var all []TrainingSample
	for _, f := range files {
		samples, err := loadSamplesFile(f)
		if err != nil {
			return nil, err
		}
		all = append(all, samples...)
	}
	return all, nil
}

func loadSamplesFile(path string) ([]TrainingSample, error) {
	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		return loadSamplesLines(path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read samples %s: %w", path, err)
	}
	var samples []TrainingSample
	if err := json.Unmarshal(raw, &samples); err != nil {
		return nil, fmt.Errorf("failed to parse samples %s: %w", path, err)
	}
	return samples, nil
}

func loadSamplesLines(path string) ([]TrainingSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open samples %s: %w", path, err)
	}
	defer f.Close()

	var samples []TrainingSample
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var s TrainingSample
		if err := json.Unmarshal([]byte(text), &s); err != nil {
			return nil, fmt.Errorf("failed to parse %s line %d: %w", path, line, err)
		}
		samples = append(samples, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read samples %s: %w", path, err)
	}
	return samples, nil
}

// SaveSamples writes samples as a JSON array
func SaveSamples(path string, samples []TrainingSample) error {
	raw, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode samples: %w", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("failed to write samples %s: %w", path, err)
	}
	return nil
}
