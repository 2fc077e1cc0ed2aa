package services

import (
	"context"
	"testing"
	"time"

	"devblog/pkg/config"
	"devblog/pkg/models"
	"devblog/pkg/testsupport"

	"go.uber.org/zap"
)

const (
	testOwner = "octocat"
	testToken = "gho_test"
	testRepo  = "DevBlog"
)

var testNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func newFakeStore(t *testing.T) (*testsupport.FakeGitHub, *GitHubClient) {
	t.Helper()
	fake := testsupport.NewFakeGitHub(testOwner, testToken)
	t.Cleanup(fake.Close)
	session := models.Session{Token: testToken, User: models.Identity{Login: testOwner}}
	client := NewGitHubClient(context.Background(), session, WithBaseURL(fake.URL()))
	return fake, client
}

func newTestSynchronizer(t *testing.T, mutate ...func(*config.Site)) (*testsupport.FakeGitHub, *Synchronizer) {
	t.Helper()
	fake, client := newFakeStore(t)
	site := config.DefaultSite()
	for _, m := range mutate {
		m(&site)
	}
	sync := NewSynchronizer(client, site, zap.NewNop(), WithClock(func() time.Time { return testNow }))
	return fake, sync
}
