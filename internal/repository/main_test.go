package repository

import (
	"os"
	"testing"

	"github.com/DYArchive/distributed-youtube-tracker/internal/testutil/pgtest"
)

func TestMain(m *testing.M) {
	os.Exit(pgtest.Main(m))
}
