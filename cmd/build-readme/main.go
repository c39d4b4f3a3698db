// Command build-readme regenerates README.md from README.md.tmpl and the
// registered commands.
package main

import (
	"os"

	_ "aoi/internal/command/chat"
	_ "aoi/internal/command/help"
	_ "aoi/internal/command/permissions"
	_ "aoi/internal/command/settings"

	"aoi/internal/docs"
	"aoi/internal/prefix"
	"aoi/internal/version"
	"aoi/pkg/cmd"

	"github.com/rs/zerolog"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	if err := docs.UpdateReadme(cmd.DefaultRegistry, version.AppName, prefix.DefaultPrefix, "README.md.tmpl", "README.md"); err != nil {
		log.Fatal().Err(err).Msg("failed to update README")
	}
	log.Info().Int("commands", len(cmd.DefaultRegistry.GetAll())).Msg("README.md updated")
}
