package game

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/gpengine/gameplay/internal/core/observability/log"
	"github.com/gpengine/gameplay/internal/core/observability/metrics"
	"github.com/gpengine/gameplay/internal/core/scene"
	"github.com/gpengine/gameplay/internal/core/serializer"
	"github.com/gpengine/gameplay/pkg/concurrent"
)

const (
	resultLoaded = "loaded"
	resultFailed = "failed"
)

// LoadScene starts reading url on the loader pool and returns at once.
// Concurrent loads of one url share a single read. The outcome is
// published as EventSceneLoaded or EventSceneLoadFailed and kept for
// LoadedScene.
func (g *Game) LoadScene(url string) error {
	if g.exiting.Load() {
		return ErrExiting
	}
	err := g.pool.Submit(func() {
		_, _, _ = g.loads.Do(url, func() (any, error) { return g.load(url) })
	})
	return errors.Wrapf(err, "submit load of %s", url)
}

// LoadSceneSync reads url on the calling goroutine, joining a load of the
// same url already in flight.
func (g *Game) LoadSceneSync(url string) (*scene.SceneObject, error) {
	v, err, _ := g.loads.Do(url, func() (any, error) { return g.load(url) })
	if err != nil {
		return nil, err
	}
	return v.(*scene.SceneObject), nil
}

// PreloadScenes reads every url before returning, using at most as many
// goroutines as the loader pool has workers. It returns the first error.
func (g *Game) PreloadScenes(ctx context.Context, urls ...string) error {
	return concurrent.ForEach(ctx, urls, g.workers, func(_ context.Context, url string) error {
		_, err := g.LoadSceneSync(url)
		return err
	})
}

// LoadedScene returns the outcome of the last completed load of url. ok
// is false while no load of url has completed.
func (g *Game) LoadedScene(url string) (s *scene.SceneObject, ok bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.result(url)
}

func (g *Game) result(url string) (*scene.SceneObject, bool, error) {
	if s, ok := g.scenes[url]; ok {
		return s, true, nil
	}
	if err, ok := g.failed[url]; ok {
		return nil, true, err
	}
	return nil, false, nil
}

// UnloadScene drops the cached result for url. The current scene is
// cleared when it came from url.
func (g *Game) UnloadScene(url string) {
	g.mu.Lock()
	if s, ok := g.scenes[url]; ok && s == g.scene {
		g.scene = nil
	}
	delete(g.scenes, url)
	delete(g.failed, url)
	g.mu.Unlock()
}

// SaveScene writes the current scene to url.
func (g *Game) SaveScene(url string, format serializer.Format) error {
	s := g.Scene()
	if s == nil {
		return errors.New("game: no scene to save")
	}
	w, err := serializer.CreateWriter(g.fsys, url, format, g.act)
	if err != nil {
		return err
	}
	w.WriteObject("", s)
	if err := w.Err(); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "write scene %s", url)
	}
	return w.Close()
}

func (g *Game) load(url string) (*scene.SceneObject, error) {
	start := time.Now()
	s, err := g.readScene(url)
	elapsed := time.Since(start)
	metrics.SceneLoadLatency.Observe(float64(elapsed) / float64(time.Millisecond))

	g.mu.Lock()
	if err != nil {
		g.failed[url] = err
		delete(g.scenes, url)
	} else {
		g.scenes[url] = s
		delete(g.failed, url)
	}
	g.mu.Unlock()

	if err != nil {
		metrics.SceneLoads.WithLabelValues(resultFailed).Inc()
		g.logger.Error("scene load failed", log.String("url", url), log.Error(err))
		g.publish(EventSceneLoadFailed, SceneLoadEvent{URL: url, Err: err, Elapsed: elapsed})
		return nil, err
	}
	metrics.SceneLoads.WithLabelValues(resultLoaded).Inc()
	g.logger.Info("scene loaded", log.String("url", url), log.Duration("elapsed", elapsed))
	g.publish(EventSceneLoaded, SceneLoadEvent{URL: url, Scene: s, Elapsed: elapsed})
	return s, nil
}

func (g *Game) readScene(url string) (*scene.SceneObject, error) {
	r, err := serializer.OpenReader(g.fsys, url, g.act)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	obj, err := r.ReadObject("")
	if err != nil {
		return nil, errors.Wrapf(err, "read scene %s", url)
	}
	root, ok := obj.(*scene.SceneObject)
	if !ok {
		return nil, errors.Wrapf(ErrNotScene, "%s: root is %T", url, obj)
	}
	return root, nil
}
