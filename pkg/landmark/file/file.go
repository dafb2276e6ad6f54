// Package file reads track landmarks from a YAML file.
//
//	tracks:
//	  spa:
//	    segments:
//	      - {id: s1, name: La Source, start: 100, end: 250}
//	    turns:
//	      - {id: t1, name: T1, start: 200}
package file

import (
	"context"
	"fmt"
	"os"

	"github.com/aarondl/opt/omit"
	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/lapviewer-go/log"
	"github.com/mpapenbr/lapviewer-go/pkg/landmark"
	"github.com/mpapenbr/lapviewer-go/pkg/model"
	"github.com/mpapenbr/lapviewer-go/pkg/utils/filewatch"
)

type (
	fileContent struct {
		Tracks map[string]trackEntry `yaml:"tracks"`
	}
	trackEntry struct {
		Segments []landmarkEntry `yaml:"segments"`
		Turns    []landmarkEntry `yaml:"turns"`
	}
	landmarkEntry struct {
		ID    string   `yaml:"id"`
		Name  string   `yaml:"name"`
		Start float64  `yaml:"start"`
		End   *float64 `yaml:"end"`
	}
)

type Source struct {
	*landmark.Static
	path string
	l    *log.Logger
}

var _ landmark.Source = (*Source)(nil)

type Option func(*Source)

func WithLogger(l *log.Logger) Option {
	return func(s *Source) {
		s.l = l
	}
}

// New reads the file. Use Watch to pick up later changes.
func New(path string, opts ...Option) (*Source, error) {
	ret := &Source{
		Static: landmark.NewStatic(nil),
		path:   path,
		l:      log.Default().Named("landmark.file"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if err := ret.Reload(); err != nil {
		return nil, err
	}
	return ret, nil
}

// Reload reads the file again. On error the previous content is kept.
func (s *Source) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	tracks, err := Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", s.path, err)
	}
	s.Replace(tracks)
	s.l.Info("landmarks loaded", log.String("file", s.path), log.Int("tracks", len(tracks)))
	return nil
}

// Watch reloads the file on changes until ctx is done.
func (s *Source) Watch(ctx context.Context) error {
	return filewatch.Watch(ctx, s.l, func(string) {
		if err := s.Reload(); err != nil {
			s.l.Error("could not reload landmarks", log.ErrorField(err))
		}
	}, s.path)
}

// Parse decodes the YAML content. Landmarks keep the order of the file.
func Parse(data []byte) (map[string]*model.TrackLandmarks, error) {
	var content fileContent
	if err := yaml.Unmarshal(data, &content); err != nil {
		return nil, err
	}
	ret := make(map[string]*model.TrackLandmarks, len(content.Tracks))
	for track, entry := range content.Tracks {
		tl := &model.TrackLandmarks{}
		var err error
		if tl.Segments, err = convert(track, model.LandmarkSegment, entry.Segments); err != nil {
			return nil, err
		}
		if tl.Turns, err = convert(track, model.LandmarkTurn, entry.Turns); err != nil {
			return nil, err
		}
		ret[track] = tl
	}
	return ret, nil
}

//nolint:whitespace // can't make both editor and linter happy
func convert(
	track string,
	kind model.LandmarkKind,
	entries []landmarkEntry,
) ([]model.Landmark, error) {
	ret := make([]model.Landmark, 0, len(entries))
	for i, e := range entries {
		lm := model.Landmark{ID: e.ID, Name: e.Name, Start: e.Start}
		if lm.ID == "" {
			lm.ID = fmt.Sprintf("%s-%d", kind, i)
		}
		if e.End != nil {
			if *e.End <= e.Start {
				return nil, fmt.Errorf("track %s: %s %q ends before it starts",
					track, kind, e.Name)
			}
			lm.End = omit.From(*e.End)
		}
		ret = append(ret, lm)
	}
	return ret, nil
}
