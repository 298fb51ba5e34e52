package storage

import (
	"encoding/json"
	"errors"

	"bioevo/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion stamps new records.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodePattern(p model.PatternRecord) ([]byte, error) {
	return json.Marshal(p)
}

func DecodePattern(data []byte) (model.PatternRecord, error) {
	var record model.PatternRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.PatternRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.PatternRecord{}, err
	}
	if err := record.Pattern.Validate(); err != nil {
		return model.PatternRecord{}, err
	}
	return record, nil
}

func EncodeGenerationStats(stats []model.GenerationStats) ([]byte, error) {
	return json.Marshal(stats)
}

func DecodeGenerationStats(data []byte) ([]model.GenerationStats, error) {
	var stats []model.GenerationStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func EncodeHallOfFame(entries []model.HallOfFameEntry) ([]byte, error) {
	return json.Marshal(entries)
}

func DecodeHallOfFame(data []byte) ([]model.HallOfFameEntry, error) {
	var entries []model.HallOfFameEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
