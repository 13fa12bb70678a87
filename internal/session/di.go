package session

import (
	"github.com/foxseedlab/tsuyaku/internal/audio"
	"github.com/foxseedlab/tsuyaku/internal/config"
	"github.com/foxseedlab/tsuyaku/internal/discord"
	"github.com/foxseedlab/tsuyaku/internal/library"
	"github.com/foxseedlab/tsuyaku/internal/llm"
	"github.com/foxseedlab/tsuyaku/internal/repository"
	"github.com/foxseedlab/tsuyaku/internal/transcriber"
	"github.com/foxseedlab/tsuyaku/internal/translation"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		lib := do.MustInvoke[*library.Service](i)
		translator := do.MustInvoke[translation.Translator](i)
		summarizer := do.MustInvoke[llm.Summarizer](i)

		var voiceDeps *VoiceDeps
		if cfg.DiscordEnabled() {
			voiceDeps = &VoiceDeps{
				Discord:     do.MustInvoke[discord.Client](i),
				Transcriber: do.MustInvoke[transcriber.Transcriber](i),
				NewMixer:    do.MustInvoke[audio.MixerFactory](i),
			}
		}
		return NewManager(cfg, repo, lib, translator, summarizer, voiceDeps), nil
	})
}
