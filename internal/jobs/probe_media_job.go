// Package jobs defines the background work submitted to the worker
// dispatcher: probing imported media and priming audio tracks.
package jobs

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"videosync/internal/media"
	"videosync/internal/playback"
	"videosync/internal/session"
	"videosync/models"
)

// ProbeFunc lets tests swap the ffprobe invocation out.
type ProbeFunc func(path string) (*media.ProbeResult, error)

// ProbeClipJob inspects an imported clip's media file and settles the clip
// into ready or error state. Playback queued behind this clip is released
// when it completes.
type ProbeClipJob struct {
	JobID     string
	SessionID uuid.UUID
	ClipID    uuid.UUID
	Path      string

	Registry *session.Registry
	Probe    ProbeFunc
	Log      *logrus.Logger
}

func (j *ProbeClipJob) ID() string { return j.JobID }

func (j *ProbeClipJob) Execute() error {
	probe := j.Probe
	if probe == nil {
		probe = media.Probe
	}

	result, err := probe(j.Path)

	s, ok := j.Registry.Get(j.SessionID)
	if !ok {
		return fmt.Errorf("session %s gone before probe finished", j.SessionID)
	}

	var jobErr error
	s.WithLock(func(tl *models.Timeline, _ *models.PlaybackState, ctrl *playback.Controller) {
		cl := tl.FindClip(j.ClipID)
		if cl == nil {
			jobErr = fmt.Errorf("clip %s gone before probe finished", j.ClipID)
			return
		}

		if err != nil {
			cl.Status = models.ClipStatusError
			msg := err.Error()
			var codecErr *media.IncompatibleCodecError
			if errors.As(err, &codecErr) {
				msg = fmt.Sprintf("unsupported video codec %q", codecErr.Codec)
			}
			cl.ErrorMessage = &msg
			ctrl.Media().MarkError(j.ClipID, err)
			j.Log.WithFields(logrus.Fields{
				"job_id":  j.JobID,
				"clip_id": j.ClipID,
				"error":   err.Error(),
			}).Error("Media probe failed")
			jobErr = err
			return
		}

		cl.SourceDuration = result.Duration
		cl.Status = models.ClipStatusReady
		// An imported clip starts untrimmed; the probed duration defines the
		// full span.
		if cl.TimelineEnd <= cl.TimelineStart {
			cl.TimelineEnd = cl.TimelineStart + result.Duration
		}
		ctrl.Media().MarkReady(j.ClipID)
		ctrl.MarkReady(j.ClipID)
		tl.MarkChanged()
		j.Log.WithFields(logrus.Fields{
			"job_id":   j.JobID,
			"clip_id":  j.ClipID,
			"duration": result.Duration,
			"codec":    result.VideoCodec,
		}).Info("Media probe completed")
	})
	return jobErr
}

// ProbeBGMJob measures an imported audio file and marks the track ready for
// the mixer. Until it completes the mixer reports the track as pending.
type ProbeBGMJob struct {
	JobID     string
	SessionID uuid.UUID
	TrackID   uuid.UUID
	Path      string

	Registry *session.Registry
	Probe    ProbeFunc
	Log      *logrus.Logger
}

func (j *ProbeBGMJob) ID() string { return j.JobID }

func (j *ProbeBGMJob) Execute() error {
	probe := j.Probe
	if probe == nil {
		probe = media.Probe
	}

	result, err := probe(j.Path)
	if err != nil {
		j.Log.WithFields(logrus.Fields{
			"job_id":   j.JobID,
			"track_id": j.TrackID,
			"error":    err.Error(),
		}).Error("BGM probe failed")
		return err
	}

	s, ok := j.Registry.Get(j.SessionID)
	if !ok {
		return fmt.Errorf("session %s gone before probe finished", j.SessionID)
	}

	var jobErr error
	s.WithLock(func(tl *models.Timeline, _ *models.PlaybackState, _ *playback.Controller) {
		b := tl.FindBGMTrack(j.TrackID)
		if b == nil {
			jobErr = fmt.Errorf("bgm track %s gone before probe finished", j.TrackID)
			return
		}
		b.Duration = result.Duration
		tl.MarkChanged()
	})
	if jobErr != nil {
		return jobErr
	}

	s.Mixer().MarkTrackReady(j.TrackID)
	j.Log.WithFields(logrus.Fields{
		"job_id":   j.JobID,
		"track_id": j.TrackID,
		"duration": result.Duration,
	}).Info("BGM probe completed")
	return nil
}
