// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package fckvconf

import (
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/minio/fckv"
	"gopkg.in/yaml.v3"
)

type ymlFile struct {
	Version string `yaml:"version"`

	Addr env[string] `yaml:"address"`

	Admin struct {
		Identity env[string] `yaml:"identity"`
	} `yaml:"admin"`

	TLS struct {
		PrivateKey  env[string] `yaml:"key"`
		Certificate env[string] `yaml:"cert"`
		CAPath      env[string] `yaml:"ca"`
		Password    env[string] `yaml:"password"`
		ClientAuth  env[string] `yaml:"auth"`
	} `yaml:"tls"`

	Log struct {
		Error env[string] `yaml:"error"`
		Audit env[string] `yaml:"audit"`
	} `yaml:"log"`

	Lock struct {
		Lease env[time.Duration] `yaml:"lease"`
	} `yaml:"lock"`

	API struct {
		Paths map[string]struct {
			InsecureSkipAuth env[bool]          `yaml:"skip_auth"`
			Timeout          env[time.Duration] `yaml:"timeout"`
		} `yaml:",inline"`
	} `yaml:"api"`

	Store struct {
		Verify env[string] `yaml:"verify"`

		Mem *struct{} `yaml:"mem"`

		FS *struct {
			Path env[string] `yaml:"path"`
		} `yaml:"fs"`

		LevelDB *struct {
			Path env[string] `yaml:"path"`
		} `yaml:"leveldb"`

		Badger *struct {
			Path     env[string] `yaml:"path"`
			InMemory env[bool]   `yaml:"in_memory"`
		} `yaml:"badger"`

		Bolt *struct {
			Path env[string] `yaml:"path"`
		} `yaml:"bolt"`
	} `yaml:"store"`

	Debug struct {
		Tamper env[bool] `yaml:"tamper"`
	} `yaml:"debug"`
}

func findVersion(root *yaml.Node) (string, error) {
	if root == nil {
		return "", errors.New("fckvconf: invalid config")
	}
	if root.Kind != yaml.DocumentNode {
		return "", errors.New("fckvconf: invalid config format")
	}
	if len(root.Content) != 1 {
		return "", errors.New("fckvconf: invalid config format")
	}

	doc := root.Content[0]
	for i, n := range doc.Content {
		if n.Value != "version" {
			continue
		}
		if n.Kind != yaml.ScalarNode || i == len(doc.Content)-1 {
			return "", fmt.Errorf("fckvconf: invalid config version at line '%d'", n.Line)
		}
		v := doc.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return "", fmt.Errorf("fckvconf: invalid config version at line '%d'", v.Line)
		}
		return v.Value, nil
	}
	return "", nil
}

func ymlToFile(y *ymlFile) (*File, error) {
	if y.Version != "" && y.Version != "v1" {
		return nil, fmt.Errorf("fckvconf: invalid config version '%s'", y.Version)
	}
	if admin := y.Admin.Identity.Value; admin != "" {
		if b, err := hex.DecodeString(admin); err != nil || len(b) != 32 {
			return nil, fmt.Errorf("fckvconf: invalid admin identity '%s'", admin)
		}
	}
	if y.TLS.PrivateKey.Value == "" {
		return nil, errors.New("fckvconf: invalid tls config: no private key")
	}
	if y.TLS.Certificate.Value == "" {
		return nil, errors.New("fckvconf: invalid tls config: no certificate")
	}

	clientAuth := tls.RequireAnyClientCert
	if v := strings.ToLower(y.TLS.ClientAuth.Value); v != "" && v != "on" && v != "off" {
		return nil, fmt.Errorf("fckvconf: invalid tls config: invalid auth '%s'", y.TLS.ClientAuth.Value)
	} else if v == "on" {
		clientAuth = tls.RequireAndVerifyClientCert
	}

	errLevel, err := parseLogLevel(y.Log.Error.Value)
	if err != nil {
		return nil, err
	}
	auditLevel, err := parseLogLevel(y.Log.Audit.Value)
	if err != nil {
		return nil, err
	}

	if y.Lock.Lease.Value < 0 {
		return nil, fmt.Errorf("fckvconf: invalid lock lease '%v'", y.Lock.Lease.Value)
	}

	for path, api := range y.API.Paths {
		if api.Timeout.Value < 0 {
			return nil, fmt.Errorf("fckvconf: invalid timeout '%v' for API '%s'", api.Timeout.Value, path)
		}

		// Clients of an API without authentication may not
		// send a certificate at all.
		if api.InsecureSkipAuth.Value {
			if clientAuth == tls.RequireAnyClientCert {
				clientAuth = tls.RequestClientCert
			}
			if clientAuth == tls.RequireAndVerifyClientCert {
				clientAuth = tls.VerifyClientCertIfGiven
			}
		}
	}

	verify, err := fckv.ParseVerifyMode(y.Store.Verify.Value)
	if err != nil {
		return nil, fmt.Errorf("fckvconf: invalid store config: %v", err)
	}
	store, err := ymlToStore(y)
	if err != nil {
		return nil, err
	}

	f := &File{
		Addr:  y.Addr.Value,
		Admin: y.Admin.Identity.Value,
		TLS: &TLSConfig{
			PrivateKey:  y.TLS.PrivateKey.Value,
			Certificate: y.TLS.Certificate.Value,
			Password:    y.TLS.Password.Value,
			ClientAuth:  clientAuth,
			CAPath:      y.TLS.CAPath.Value,
		},
		Log: &LogConfig{
			ErrLevel:   errLevel,
			AuditLevel: auditLevel,
		},
		LockLease:    y.Lock.Lease.Value,
		Verify:       verify,
		Store:        store,
		EnableTamper: y.Debug.Tamper.Value,
	}
	if len(y.API.Paths) > 0 {
		paths := make(map[string]APIPathConfig, len(y.API.Paths))
		for path, api := range y.API.Paths {
			paths[path] = APIPathConfig{
				InsecureSkipAuth: api.InsecureSkipAuth.Value,
				Timeout:          api.Timeout.Value,
			}
		}
		f.API = &APIConfig{Paths: paths}
	}
	return f, nil
}

func ymlToStore(y *ymlFile) (Store, error) {
	var (
		store Store
		n     int
	)
	if y.Store.Mem != nil {
		store = &MemStore{}
		n++
	}
	if y.Store.FS != nil {
		if y.Store.FS.Path.Value == "" {
			return nil, errors.New("fckvconf: invalid fs store: no path specified")
		}
		store = &FSStore{Path: y.Store.FS.Path.Value}
		n++
	}
	if y.Store.LevelDB != nil {
		if y.Store.LevelDB.Path.Value == "" {
			return nil, errors.New("fckvconf: invalid leveldb store: no path specified")
		}
		store = &LevelDBStore{Path: y.Store.LevelDB.Path.Value}
		n++
	}
	if y.Store.Badger != nil {
		if y.Store.Badger.Path.Value == "" && !y.Store.Badger.InMemory.Value {
			return nil, errors.New("fckvconf: invalid badger store: no path specified")
		}
		store = &BadgerStore{
			Path:     y.Store.Badger.Path.Value,
			InMemory: y.Store.Badger.InMemory.Value,
		}
		n++
	}
	if y.Store.Bolt != nil {
		if y.Store.Bolt.Path.Value == "" {
			return nil, errors.New("fckvconf: invalid bolt store: no path specified")
		}
		store = &BoltStore{Path: y.Store.Bolt.Path.Value}
		n++
	}

	switch {
	case n == 0:
		return nil, errors.New("fckvconf: no store specified")
	case n > 1:
		return nil, errors.New("fckvconf: more than one store specified")
	}
	return store, nil
}

type env[T any] struct {
	Var   string
	Value T
}

func (r env[T]) MarshalYAML() (any, error) {
	if env := strings.TrimSpace(r.Var); env != "" {
		switch p, s := strings.HasPrefix(env, "${"), strings.HasSuffix(env, "}"); {
		case p && s:
			return env, nil
		case !p && !s:
			return "${" + env + "}", nil
		default:
			return nil, fmt.Errorf("fckvconf: invalid env. variable reference '%s'", r.Var)
		}
	}
	return r.Value, nil
}

func (r *env[T]) UnmarshalYAML(node *yaml.Node) error {
	var env string
	if v := strings.TrimSpace(node.Value); strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
		env = strings.TrimSpace(v[2 : len(v)-1])
		v, ok := os.LookupEnv(env)
		if !ok {
			return fmt.Errorf("fckvconf: referenced env. variable '%s' in line '%d' not found", env, node.Line)
		}
		node.Value = v
	}

	var v T
	if err := node.Decode(&v); err != nil {
		return err
	}
	r.Var = env
	r.Value = v
	return nil
}

// parseLogLevel parses s as slog.Level. Besides the slog level
// names, it accepts "on" (INFO) and "off" (above ERROR).
func parseLogLevel(s string) (slog.Level, error) {
	switch s = strings.TrimSpace(strings.ToUpper(s)); s {
	case "", "ON":
		return slog.LevelInfo, nil
	case "OFF":
		return slog.LevelError + 1, nil
	}

	if n, err := strconv.Atoi(s); err == nil {
		return slog.Level(n), nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("fckvconf: invalid log level '%s'", s)
	}
	return level, nil
}
