// Package executor implements the warm-session execution flow: reuse the
// session's container when the registry hits, build and start one when it
// misses, then exec the language invocation and capture its output.
package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/codexec/codexec/internal/buildctx"
	"github.com/codexec/codexec/internal/cleanup"
	"github.com/codexec/codexec/internal/config"
	"github.com/codexec/codexec/internal/driver"
	"github.com/codexec/codexec/internal/language"
	"github.com/codexec/codexec/internal/session"
)

// Service coordinates the driver, the tar context builder and the session
// registry for execute requests.
type Service struct {
	cfg      *config.Config
	drv      driver.Driver
	registry *session.Registry
	cleaner  *cleanup.Service
}

// NewService wires an executor service.
func NewService(cfg *config.Config, drv driver.Driver, registry *session.Registry, cleaner *cleanup.Service) *Service {
	return &Service{cfg: cfg, drv: drv, registry: registry, cleaner: cleaner}
}

// EnsureSessionContainer executes code in the container registered for
// (sessionID, lang), building and starting one first if the session is not
// yet warm. A registry miss is the trigger for the build path; every other
// registry error is surfaced.
func (s *Service) EnsureSessionContainer(ctx context.Context, sessionID string, lang language.Language, code string) (string, error) {
	value, err := s.registry.Lookup(sessionID, lang)
	if err == nil {
		log.Debug().Str("session_id", sessionID).Stringer("language", lang).
			Str("container", value.ContainerName).Msg("Session hit, reusing container")
		return s.drv.Exec(ctx, value.ContainerName, lang.ShellCommand(code))
	}
	if !errors.Is(err, session.ErrNotFound) {
		return "", err
	}

	containerName, err := s.BuildAndStart(ctx, sessionID, lang)
	if err != nil {
		return "", err
	}
	return s.drv.Exec(ctx, containerName, lang.ShellCommand(code))
}

// BuildAndStart builds the language image for the session, starts a
// container from it, and registers the pair in the session registry.
// Registration failure after a successful start is fatal: the fresh
// container is removed and the error surfaced, so the registry never
// disagrees with the engine about which container serves the session.
func (s *Service) BuildAndStart(ctx context.Context, sessionID string, lang language.Language) (string, error) {
	dockerfilePath := lang.DockerfilePath(s.cfg)
	tarPath := buildctx.Path(s.cfg.Paths.TarPath, lang.String(), s.cfg.Constants.TarFileName)

	if err := buildctx.Write(dockerfilePath, tarPath, s.cfg.Constants.Dockerfile); err != nil {
		return "", err
	}

	imageTag := fmt.Sprintf("%s_%s_%s", s.cfg.Constants.ExecutorImageName, sessionID, lang)
	if err := s.drv.BuildImage(ctx, tarPath, s.cfg.Constants.Dockerfile, imageTag); err != nil {
		return "", err
	}

	// The archive is spent once the build succeeds; its removal is not part
	// of the request path. Leaks are swept by the shutdown tar purge.
	go func() {
		if err := s.cleaner.Run(context.Background(), cleanup.Activity{OneTar: tarPath}); err != nil {
			log.Warn().Err(err).Str("tar", tarPath).Msg("Failed to clean up build context")
		}
	}()

	containerName := fmt.Sprintf("%s_%s_%s", s.cfg.Constants.ExecutorContainerName, lang, sessionID)
	labels := map[string]string{s.cfg.Constants.DockerCreatedByLabel: s.cfg.PodTag()}

	if err := s.drv.CreateContainer(ctx, containerName, imageTag, labels); err != nil {
		return "", err
	}
	if err := s.drv.StartContainer(ctx, containerName); err != nil {
		return "", err
	}

	if err := s.registry.Add(sessionID, lang, containerName); err != nil {
		if rmErr := s.drv.RemoveContainer(ctx, containerName); rmErr != nil {
			log.Error().Err(rmErr).Str("container", containerName).
				Msg("Failed to remove container after registration failure")
		}
		return "", fmt.Errorf("failed to register session: %w", err)
	}

	log.Info().Str("session_id", sessionID).Stringer("language", lang).
		Str("container", containerName).Msg("Session container ready")
	return containerName, nil
}
