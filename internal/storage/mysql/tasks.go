package mysql

import (
	"context"

	"glazing-backend/internal/storage"
)

const tableTasks = "assembly_tasks"

func (s *Storage) GetTask(ctx context.Context, id string) (*storage.AssemblyTask, error) {
	var task storage.AssemblyTask
	version, err := s.getDoc(ctx, tableTasks, id, &task)
	if err != nil {
		return nil, err
	}
	task.Version = version
	return &task, nil
}

func (s *Storage) ListTasks(ctx context.Context) ([]*storage.AssemblyTask, error) {
	docs, versions, err := listDocs[storage.AssemblyTask](ctx, s, tableTasks)
	if err != nil {
		return nil, err
	}
	tasks := make([]*storage.AssemblyTask, len(docs))
	for i := range docs {
		docs[i].Version = versions[i]
		tasks[i] = &docs[i]
	}
	return tasks, nil
}

func (s *Storage) InsertTask(ctx context.Context, task *storage.AssemblyTask) error {
	if err := s.insertDoc(ctx, tableTasks, task.ID, task); err != nil {
		return err
	}
	task.Version = 1
	return nil
}

func (s *Storage) UpdateTask(ctx context.Context, task *storage.AssemblyTask) error {
	if err := s.updateDoc(ctx, tableTasks, task.ID, task, task.Version); err != nil {
		return err
	}
	task.Version++
	return nil
}
