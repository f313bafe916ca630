package store

import "basegraph.app/copilot-survey/internal/model"

type branchFactory struct {
	client ContentClient
	branch string
	path   string
}

// NewBranchFactory stores each repository's records on a branch of that repository.
func NewBranchFactory(client ContentClient, branch, path string) Factory {
	return &branchFactory{client: client, branch: branch, path: path}
}

func (f *branchFactory) For(repo model.RepoRef) SurveyStore {
	return NewBranchCSVStore(f.client, repo, f.branch, f.path)
}

type sharedFactory struct {
	store SurveyStore
}

// NewSharedFactory serves a single store for every repository.
func NewSharedFactory(store SurveyStore) Factory {
	return &sharedFactory{store: store}
}

func (f *sharedFactory) For(model.RepoRef) SurveyStore {
	return f.store
}
