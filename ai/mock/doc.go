// Package mock provides test double implementations of AI service interfaces.
//
// Every mock has overridable Func fields, a deterministic default behavior and
// a call counter. Mocks are safe for concurrent use, since the orchestrator
// runs several jobs at once.
//
// # Usage in Tests
//
//	extractor := mock.NewMockRecipeExtractor()
//	extractor.ExtractRecipeFunc = func(ctx context.Context, transcript, caption string) (*core.Recipe, error) {
//	    return nil, context.DeadlineExceeded
//	}
//	provider := mock.NewMockProviderWithServices(nil, extractor, nil, nil)
//	...
//	assert.Equal(t, 3, extractor.CallCount())
package mock
