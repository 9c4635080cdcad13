package mock

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-errors/errors"
	"github.com/the-lightning-land/wifid/wifi"
	"go.etcd.io/bbolt"
)

const dbFilename = "networks.db"

var networksBucket = []byte("networks")

// store persists saved network records the way a platform keeps them across
// restarts.
type store struct {
	*bbolt.DB
}

type storedNetwork struct {
	ID              string            `json:"id"`
	Ssid            string            `json:"ssid"`
	Security        wifi.SecurityKind `json:"security"`
	KeyMgmt         []string          `json:"key_mgmt"`
	Protocols       []string          `json:"protocols"`
	AuthAlgorithms  []string          `json:"auth_algorithms"`
	PairwiseCiphers []string          `json:"pairwise_ciphers"`
	GroupCiphers    []string          `json:"group_ciphers"`
	PreSharedKey    string            `json:"psk"`
	WepKeys         [4]string         `json:"wep_keys"`
	WepTxKeyIndex   int               `json:"wep_tx_key_index"`
	Priority        int               `json:"priority"`
	Status          wifi.ConfigStatus `json:"status"`
}

func openStore(dir string) (*store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Errorf("could not create %v: %v", dir, err)
	}

	path := filepath.Join(dir, dbFilename)

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Errorf("could not open %v: %v", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(networksBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Errorf("could not create networks bucket: %v", err)
	}

	return &store{DB: db}, nil
}

func (s *store) networks() ([]*wifi.NetworkConfig, error) {
	var configs []*wifi.NetworkConfig

	err := s.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(networksBucket).ForEach(func(k, v []byte) error {
			stored := storedNetwork{}

			err := json.Unmarshal(v, &stored)
			if err != nil {
				return errors.Errorf("could not unmarshal network %s: %v", k, err)
			}

			configs = append(configs, stored.config())
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return configs, nil
}

func (s *store) network(id string) (*wifi.NetworkConfig, error) {
	var config *wifi.NetworkConfig

	err := s.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(networksBucket).Get([]byte(id))
		if v == nil {
			return nil
		}

		stored := storedNetwork{}

		err := json.Unmarshal(v, &stored)
		if err != nil {
			return errors.Errorf("could not unmarshal network %s: %v", id, err)
		}

		config = stored.config()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return config, nil
}

// put saves config and returns its identity, allocating one when config has
// none yet.
func (s *store) put(config *wifi.NetworkConfig) (string, error) {
	id := config.ID

	err := s.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(networksBucket)

		if id == "" {
			seq, err := bucket.NextSequence()
			if err != nil {
				return err
			}

			id = strconv.FormatUint(seq, 10)
		} else if bucket.Get([]byte(id)) == nil {
			return errors.Errorf("no network with id %v", id)
		}

		payload, err := json.Marshal(newStoredNetwork(id, config))
		if err != nil {
			return err
		}

		return bucket.Put([]byte(id), payload)
	})
	if err != nil {
		return "", err
	}

	return id, nil
}

// setStatuses rewrites the status of every record through update.
func (s *store) setStatuses(update func(id string, status wifi.ConfigStatus) wifi.ConfigStatus) error {
	return s.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(networksBucket)

		updates := map[string][]byte{}

		err := bucket.ForEach(func(k, v []byte) error {
			stored := storedNetwork{}
			if err := json.Unmarshal(v, &stored); err != nil {
				return err
			}

			stored.Status = update(string(k), stored.Status)

			payload, err := json.Marshal(stored)
			if err != nil {
				return err
			}

			updates[string(k)] = payload
			return nil
		})
		if err != nil {
			return err
		}

		for k, payload := range updates {
			if err := bucket.Put([]byte(k), payload); err != nil {
				return err
			}
		}

		return nil
	})
}

func newStoredNetwork(id string, config *wifi.NetworkConfig) *storedNetwork {
	return &storedNetwork{
		ID:              id,
		Ssid:            config.Ssid,
		Security:        config.Security,
		KeyMgmt:         config.KeyMgmt.Sorted(),
		Protocols:       config.Protocols.Sorted(),
		AuthAlgorithms:  config.AuthAlgorithms.Sorted(),
		PairwiseCiphers: config.PairwiseCiphers.Sorted(),
		GroupCiphers:    config.GroupCiphers.Sorted(),
		PreSharedKey:    config.PreSharedKey,
		WepKeys:         config.WepKeys,
		WepTxKeyIndex:   config.WepTxKeyIndex,
		Priority:        config.Priority,
		Status:          config.Status,
	}
}

func (s *storedNetwork) config() *wifi.NetworkConfig {
	return &wifi.NetworkConfig{
		ID:              s.ID,
		Ssid:            s.Ssid,
		Security:        s.Security,
		KeyMgmt:         wifi.NewSet(s.KeyMgmt...),
		Protocols:       wifi.NewSet(s.Protocols...),
		AuthAlgorithms:  wifi.NewSet(s.AuthAlgorithms...),
		PairwiseCiphers: wifi.NewSet(s.PairwiseCiphers...),
		GroupCiphers:    wifi.NewSet(s.GroupCiphers...),
		PreSharedKey:    s.PreSharedKey,
		WepKeys:         s.WepKeys,
		WepTxKeyIndex:   s.WepTxKeyIndex,
		Priority:        s.Priority,
		Status:          s.Status,
	}
}
