package mysql

import (
	"context"

	"glazing-backend/internal/storage"
)

const tableJobs = "jobs"

func (s *Storage) GetJob(ctx context.Context, id string) (*storage.Job, error) {
	var job storage.Job
	version, err := s.getDoc(ctx, tableJobs, id, &job)
	if err != nil {
		return nil, err
	}
	job.Version = version
	return &job, nil
}

func (s *Storage) ListJobs(ctx context.Context) ([]*storage.Job, error) {
	docs, versions, err := listDocs[storage.Job](ctx, s, tableJobs)
	if err != nil {
		return nil, err
	}
	jobs := make([]*storage.Job, len(docs))
	for i := range docs {
		docs[i].Version = versions[i]
		jobs[i] = &docs[i]
	}
	return jobs, nil
}

func (s *Storage) InsertJob(ctx context.Context, job *storage.Job) error {
	if err := s.insertDoc(ctx, tableJobs, job.ID, job); err != nil {
		return err
	}
	job.Version = 1
	return nil
}

// UpdateJob replaces the whole document iff the stored version still matches
// job.Version.
func (s *Storage) UpdateJob(ctx context.Context, job *storage.Job) error {
	if err := s.updateDoc(ctx, tableJobs, job.ID, job, job.Version); err != nil {
		return err
	}
	job.Version++
	return nil
}
