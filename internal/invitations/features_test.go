package invitations_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/cucumber/godog"
	"github.com/sitegrid/sitegrid/internal/cucumber"
	"github.com/stretchr/testify/require"
)

func TestFeatures(t *testing.T) {
	features, err := filepath.Glob(filepath.Join("features", "*.feature"))
	require.NoError(t, err)
	require.NotEmpty(t, features)

	for _, feature := range features {
		feature := feature
		name := strings.TrimSuffix(filepath.Base(feature), filepath.Ext(feature))
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			o := cucumber.DefaultOptions()
			o.TestingT = t
			o.Paths = []string{feature}

			s := cucumber.NewTestSuite(t)
			status := godog.TestSuite{
				Name:                name,
				Options:             &o,
				ScenarioInitializer: s.InitializeScenario,
			}.Run()
			if status != 0 {
				t.Fail()
			}
		})
	}
}
