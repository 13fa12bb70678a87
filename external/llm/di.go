package llm

import (
	"github.com/foxseedlab/tsuyaku/internal/config"
	"github.com/foxseedlab/tsuyaku/internal/llm"
	"github.com/foxseedlab/tsuyaku/internal/repository"
	"github.com/foxseedlab/tsuyaku/internal/translation"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (llm.CredentialSource, error) {
		c := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		return llm.NewStoredCredentials(c.OpenAIAPIKey, repo), nil
	})
	do.Provide(injector, func(i do.Injector) (*OpenAIClient, error) {
		c := do.MustInvoke[*config.Config](i)
		creds := do.MustInvoke[llm.CredentialSource](i)
		return NewOpenAIClient(c.OpenAIBaseURL, c.OpenAIModel, c.OpenAITimeout(), creds), nil
	})
	do.Provide(injector, func(i do.Injector) (translation.Translator, error) {
		return do.MustInvoke[*OpenAIClient](i), nil
	})
	do.Provide(injector, func(i do.Injector) (llm.Summarizer, error) {
		return do.MustInvoke[*OpenAIClient](i), nil
	})
}
