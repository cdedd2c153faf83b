// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package container

import (
	"fmt"
	"io"
)

const (
	// searxngImage is the upstream SearXNG image.
	searxngImage = "docker.io/searxng/searxng:latest"

	// searxngName is the container name used for start, status and stop.
	searxngName = "deep-researcher-searxng"

	// searxngInternalPort is the port SearXNG listens on inside the container.
	searxngInternalPort = 8080

	// DefaultSearxngPort is the host port published when none is configured.
	// It matches the default searxng_url http://localhost:8888.
	DefaultSearxngPort = 8888
)

// Searxng manages the local SearXNG container used by the searxng search
// backend. It runs exactly one named container per host.
type Searxng struct {
	rt   Runtime
	port int
}

// NewSearxng wraps a detected runtime. A non-positive port falls back to
// DefaultSearxngPort.
func NewSearxng(rt Runtime, port int) *Searxng {
	if port <= 0 {
		port = DefaultSearxngPort
	}
	return &Searxng{rt: rt, port: port}
}

// URL returns the base URL the search backend should be pointed at.
func (s *Searxng) URL() string {
	return fmt.Sprintf("http://localhost:%d", s.port)
}

// State describes the container's current condition.
type State struct {
	Running bool
	Runtime string
	URL     string
}

// Status reports whether the SearXNG container is running.
func (s *Searxng) Status() State {
	return State{
		Running: s.rt.Running(searxngName),
		Runtime: s.rt.Name(),
		URL:     s.URL(),
	}
}

// Up starts the SearXNG container if it is not already running, writing
// progress to w. The runtime pulls the image on first use.
func (s *Searxng) Up(w io.Writer) error {
	if s.rt.Running(searxngName) {
		fmt.Fprintf(w, "searxng already running at %s\n", s.URL())
		return nil
	}

	if err := s.rt.ImageExists(searxngImage); err != nil {
		fmt.Fprintf(w, "image %s not present locally, %s will pull it\n", searxngImage, s.rt.Name())
	}

	publish := fmt.Sprintf("%d:%d", s.port, searxngInternalPort)
	if err := s.rt.RunDetached(searxngName, searxngImage, publish); err != nil {
		return err
	}
	fmt.Fprintf(w, "searxng started at %s (%s container %s)\n", s.URL(), s.rt.Name(), searxngName)
	return nil
}

// Down stops the SearXNG container if it is running, writing progress to w.
func (s *Searxng) Down(w io.Writer) error {
	if !s.rt.Running(searxngName) {
		fmt.Fprintln(w, "searxng is not running")
		return nil
	}
	if err := s.rt.Stop(searxngName); err != nil {
		return err
	}
	fmt.Fprintln(w, "searxng stopped")
	return nil
}
