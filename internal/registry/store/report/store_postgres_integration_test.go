//go:build integration

package report

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"docverify/internal/platform/postgres"
	"docverify/pkg/testutil/containers"
)

type PostgresSuite struct {
	contractSuite
}

func TestPostgresSuite(t *testing.T) {
	pg := containers.GetManager().GetPostgres(t)
	if err := postgres.Migrate(context.Background(), pg.DB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	suite.Run(t, &PostgresSuite{contractSuite{newStore: func() store {
		if err := pg.TruncateTables(context.Background(), postgres.Tables...); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return NewPostgres(pg.DB)
	}}})
}
