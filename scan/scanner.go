package scan

import (
	"sync"

	"github.com/go-errors/errors"
	"github.com/the-lightning-land/wifid/platform"
	"github.com/the-lightning-land/wifid/wifi"
)

// ResultsNotifier delivers the next batch of scan results once.
type ResultsNotifier interface {
	SetScanResultsListener(handle func(platform.ScanResultsEvent)) error
	RemoveScanResultsListener()
}

// Radio is the part of the radio a Scanner drives.
type Radio interface {
	StartScan() error
	ScanResults() ([]wifi.AccessPoint, error)
}

// Listener is told once fresh results can be fetched from the Scanner.
type Listener func(s *Scanner)

type Config struct {
	Radio    Radio
	Notifier ResultsNotifier
	Logger   Logger
}

type Scanner struct {
	log      Logger
	radio    Radio
	notifier ResultsNotifier

	mtx    sync.Mutex
	filter Filter
}

func NewScanner(config *Config) *Scanner {
	s := &Scanner{
		radio:    config.Radio,
		notifier: config.Notifier,
	}

	if config.Logger != nil {
		s.log = config.Logger
	} else {
		s.log = noopLogger{}
	}

	return s
}

// SetListener waits for the next scan results. A listener still waiting is
// replaced without being called, and a listener is removed after it was
// called once.
func (s *Scanner) SetListener(listener Listener) error {
	err := s.notifier.SetScanResultsListener(func(event platform.ScanResultsEvent) {
		if !event.Success {
			s.log.Warnf("Scan finished without fresh results")
		}

		listener(s)
	})
	if err != nil {
		return errors.Errorf("could not listen for scan results: %v", err)
	}

	return nil
}

func (s *Scanner) RemoveListener() {
	s.notifier.RemoveScanResultsListener()
}

// StartScan asks the radio to scan. Results arrive later through the
// listener.
func (s *Scanner) StartScan() error {
	err := s.radio.StartScan()
	if err != nil {
		return errors.Errorf("could not start scan: %v", err)
	}

	s.log.Debugf("Requested scan")

	return nil
}

// SetFilter sets the filter Results applies when deduplicating.
func (s *Scanner) SetFilter(filter Filter) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.filter = filter
}

// Results returns the last scan results, deduplicated with the filter set
// through SetFilter when filterEmpty is set, or raw otherwise.
func (s *Scanner) Results(filterEmpty bool) ([]wifi.AccessPoint, error) {
	s.mtx.Lock()
	filter := s.filter
	s.mtx.Unlock()

	return s.FilteredResults(filterEmpty, filter)
}

// FilteredResults is Results with an explicit filter.
func (s *Scanner) FilteredResults(filterEmpty bool, filter Filter) ([]wifi.AccessPoint, error) {
	results, err := s.radio.ScanResults()
	if err != nil {
		return nil, errors.Errorf("could not get scan results: %v", err)
	}

	if !filterEmpty {
		return results, nil
	}

	return Dedupe(results, filter), nil
}
