// Package tle reads NORAD two-line element sets from local files, keeps the
// current dataset in a lock-free store, and mirrors every file it accepts
// into an on-disk cache that is used when the source file goes missing.
package tle

import "time"

// TLEEntry represents a single satellite's two-line element set.
type TLEEntry struct {
	NORADID int
	Name    string
	Epoch   time.Time
	Line1   string
	Line2   string
}

// EpochRange represents the minimum and maximum epoch times in a dataset.
type EpochRange struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// TLEDataset is one accepted TLE file. LoadedAt identifies the dataset;
// downstream caches are rebuilt when it changes.
type TLEDataset struct {
	Source     string
	LoadedAt   time.Time
	EpochRange EpochRange
	Satellites []TLEEntry
}

// Metadata describes a dataset without its elements.
type Metadata struct {
	Source     string     `json:"source"`
	LoadedAt   time.Time  `json:"loaded_at"`
	Count      int        `json:"count"`
	EpochRange EpochRange `json:"epoch_range"`
}

func (ds *TLEDataset) Metadata() Metadata {
	return Metadata{
		Source:     ds.Source,
		LoadedAt:   ds.LoadedAt,
		Count:      len(ds.Satellites),
		EpochRange: ds.EpochRange,
	}
}

// NewDataset builds a dataset from parsed entries and computes its epoch
// range.
func NewDataset(source string, loadedAt time.Time, entries []TLEEntry) *TLEDataset {
	ds := &TLEDataset{
		Source:     source,
		LoadedAt:   loadedAt,
		Satellites: entries,
	}
	for i, e := range entries {
		if i == 0 || e.Epoch.Before(ds.EpochRange.Min) {
			ds.EpochRange.Min = e.Epoch
		}
		if i == 0 || e.Epoch.After(ds.EpochRange.Max) {
			ds.EpochRange.Max = e.Epoch
		}
	}
	return ds
}
