package upload

import (
	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"
)

// logObserver logs upload transitions.
type logObserver struct {
	log logrus.FieldLogger
}

// NewLogObserver returns an Observer that logs every transition.
func NewLogObserver(log logrus.FieldLogger) Observer {
	return &logObserver{log: log.WithField("component", "uploader")}
}

func (o *logObserver) Observe(ev Event) {
	fields := logrus.Fields{
		"server": ev.Request.ServerURL,
		"state":  string(ev.To),
	}

	if ev.File != nil {
		fields["file"] = ev.File.Name
		fields["size"] = units.HumanSize(float64(ev.File.Size))
	}

	log := o.log.WithFields(fields)

	switch ev.To {
	case StateValidated:
		log.WithField("remote_dir", ev.Request.RemoteDir).Info("Upload request validated")
	case StateAuthenticated:
		log.Debug("Authenticated")
	case StateUploaded:
		log.Debug("File transferred")
	case StateDone:
		log.WithField("url", ev.AccessURL).Info("Upload completed")
	case StateFailed:
		if ev.Err != nil {
			log = log.WithFields(logrus.Fields{
				"kind":  string(ev.Err.Kind),
				"stage": string(ev.Err.Stage),
			})

			if ev.Err.StatusCode != "" {
				log = log.WithField("status", ev.Err.StatusCode)
			}
		}

		log.WithField("from", string(ev.From)).Error("Upload failed")
	}
}
