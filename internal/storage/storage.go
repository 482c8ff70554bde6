// Package storage provides simulated file storage services attached to platform hosts.
package storage

import (
	"fmt"
	"path"

	"github.com/determined-ai/schedsim/internal/failures"
	"github.com/determined-ai/schedsim/internal/platform"
)

// File is a named blob of a known size in bytes.
type File struct {
	Name string
	Size float64
}

// Service stores files and prices reads and writes in simulated seconds. Pricing never changes
// what is stored: a write becomes visible only through StoreFile once its transfer is over.
// Operations that cannot complete return a failure cause instead of a duration.
type Service interface {
	Name() string
	Host() string
	LookupFile(file File, dir string) bool
	ReadFile(file File, dir string, toHost string) (float64, failures.Cause)
	WriteFile(file File, dir string, fromHost string) (float64, failures.Cause)
	StoreFile(file File, dir string)
	DeleteFile(file File, dir string) failures.Cause
}

// Location is a directory on a storage service.
type Location struct {
	Service Service
	Dir     string
}

func (l Location) String() string {
	if l.Service == nil {
		return "<nil>:" + l.Dir
	}
	return fmt.Sprintf("%s:%s", l.Service.Name(), path.Clean("/"+l.Dir))
}

// Equal returns true if both locations designate the same directory of the same service.
func (l Location) Equal(other Location) bool {
	return l.Service == other.Service && path.Clean("/"+l.Dir) == path.Clean("/"+other.Dir)
}

// Simple is an in-memory storage service on one host. Transfers are priced by the platform.
type Simple struct {
	name     string
	host     string
	platform platform.Platform
	files    map[string]File
}

// NewSimple returns an empty storage service on the host.
func NewSimple(name, host string, p platform.Platform) *Simple {
	return &Simple{name: name, host: host, platform: p, files: make(map[string]File)}
}

// Name returns the name of the service.
func (s *Simple) Name() string {
	return s.name
}

// Host returns the host the service runs on.
func (s *Simple) Host() string {
	return s.host
}

func key(file File, dir string) string {
	return path.Join("/", dir, file.Name)
}

// Stage places a file on the service without simulated cost.
func (s *Simple) Stage(file File, dir string) {
	s.files[key(file, dir)] = file
}

// LookupFile returns true if the file is stored in the directory.
func (s *Simple) LookupFile(file File, dir string) bool {
	_, ok := s.files[key(file, dir)]
	return ok
}

// ReadFile returns the time to send the file to a host.
func (s *Simple) ReadFile(file File, dir string, toHost string) (float64, failures.Cause) {
	stored, ok := s.files[key(file, dir)]
	if !ok {
		return 0, failures.FileNotFound{File: file.Name, Location: s.name + ":" + dir}
	}
	d, err := s.platform.TimeToTransfer(s.host, toHost, stored.Size)
	if err != nil {
		return 0, failures.NetworkError{Source: s.host, Destination: toHost}
	}
	return d, nil
}

// WriteFile returns the time to receive the file from a host.
func (s *Simple) WriteFile(file File, dir string, fromHost string) (float64, failures.Cause) {
	d, err := s.platform.TimeToTransfer(fromHost, s.host, file.Size)
	if err != nil {
		return 0, failures.NetworkError{Source: fromHost, Destination: s.host}
	}
	return d, nil
}

// StoreFile stores a file whose write is over.
func (s *Simple) StoreFile(file File, dir string) {
	s.files[key(file, dir)] = file
}

// DeleteFile removes a file.
func (s *Simple) DeleteFile(file File, dir string) failures.Cause {
	k := key(file, dir)
	if _, ok := s.files[k]; !ok {
		return failures.FileNotFound{File: file.Name, Location: s.name + ":" + dir}
	}
	delete(s.files, k)
	return nil
}

// CopyTime returns how long copying a file between two locations takes. The copy is stored at the
// destination with StoreFile once that time has elapsed.
func CopyTime(file File, from, to Location) (float64, failures.Cause) {
	if !from.Service.LookupFile(file, from.Dir) {
		return 0, failures.FileNotFound{File: file.Name, Location: from.String()}
	}
	read, cause := from.Service.ReadFile(file, from.Dir, to.Service.Host())
	if cause != nil {
		return 0, cause
	}
	if _, cause := to.Service.WriteFile(file, to.Dir, to.Service.Host()); cause != nil {
		return 0, cause
	}
	return read, nil
}
