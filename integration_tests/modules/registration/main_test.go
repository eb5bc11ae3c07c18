package registrationintegrationtests

import (
	"log"
	"os"
	"sync"
	"testing"

	"github.com/Black-And-White-Club/tourney-settlement/integration_tests/testutils"
)

var (
	testEnv     *testutils.TestEnvironment
	testEnvOnce sync.Once
	testEnvErr  error
)

func TestMain(m *testing.M) {
	code := m.Run()
	testEnv.Cleanup()
	os.Exit(code)
}

func setup(t *testing.T) testutils.Deps {
	t.Helper()
	testutils.SkipIfShort(t)
	testEnvOnce.Do(func() {
		testEnv, testEnvErr = testutils.NewTestEnvironment()
		if testEnvErr != nil {
			log.Printf("Failed to set up registration test environment: %v", testEnvErr)
		}
	})
	if testEnvErr != nil {
		t.Fatalf("registration test environment initialization failed: %v", testEnvErr)
	}
	return testutils.NewDeps(t, testEnv)
}
