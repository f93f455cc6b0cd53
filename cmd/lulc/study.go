package main

import (
	"fmt"

	"github.com/banshee-data/landcover.report/internal/classify"
	"github.com/banshee-data/landcover.report/internal/composite"
	"github.com/banshee-data/landcover.report/internal/config"
	"github.com/banshee-data/landcover.report/internal/gdalio"
	"github.com/banshee-data/landcover.report/internal/geo"
	"github.com/banshee-data/landcover.report/internal/monitoring"
	"github.com/banshee-data/landcover.report/internal/session"
	"github.com/banshee-data/landcover.report/internal/workflow"
)

// Landsat surface reflectance is delivered at 30 m.
const nativePixelSize = 30.0

// study is everything needed to train and query one area.
type study struct {
	cfg     *config.WorkflowConfig
	engine  *workflow.Engine
	samples []geo.Sample
}

func loadConfig(path string) (*config.WorkflowConfig, error) {
	if path == "" {
		return config.EmptyWorkflowConfig(), nil
	}
	return config.LoadWorkflowConfig(path)
}

// engineOptions maps the configuration onto workflow options.
func engineOptions(cfg *config.WorkflowConfig) (workflow.Options, error) {
	family, err := classify.ParseFamily(cfg.GetClassifier())
	if err != nil {
		return workflow.Options{}, err
	}
	return workflow.Options{
		Years:         cfg.GetYears(),
		ReferenceYear: cfg.GetReferenceYear(),
		GSD:           cfg.GetGSD(),
		Family:        family,
		Params: classify.Params{
			Trees:       cfg.GetTrees(),
			Seed:        cfg.GetSeed(),
			BagFraction: cfg.GetBagFraction(),
			MinLeaf:     cfg.GetMinLeaf(),
			Gamma:       cfg.GetSVMGamma(),
			Cost:        cfg.GetSVMCost(),
		},
		SplitSeed:        cfg.GetSplitSeed(),
		TrainFraction:    cfg.GetTrainFraction(),
		TrendConcurrency: cfg.GetTrendConcurrency(),
	}, nil
}

// loadSamples pools every configured sample file.
func loadSamples(paths []string) ([]geo.Sample, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no sample_paths configured")
	}
	sets := make([][]geo.Sample, 0, len(paths))
	for _, p := range paths {
		s, err := geo.LoadSamples(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		sets = append(sets, s)
	}
	return geo.Pool(sets...), nil
}

func loadStudy(cfg *config.WorkflowConfig) (*study, error) {
	opts, err := engineOptions(cfg)
	if err != nil {
		return nil, err
	}
	aoi, err := geo.LoadAOI(cfg.GetAOIPath())
	if err != nil {
		return nil, err
	}
	samples, err := loadSamples(cfg.SamplePaths)
	if err != nil {
		return nil, err
	}
	grid, err := aoi.StudyGrid(nativePixelSize)
	if err != nil {
		return nil, err
	}

	gdalio.Register()
	src, err := gdalio.LoadManifest(cfg.GetSceneManifest())
	if err != nil {
		return nil, err
	}
	comp, err := composite.New(src, aoi, grid, composite.WithMaxCloudCover(cfg.GetMaxCloudCover()))
	if err != nil {
		return nil, err
	}
	engine, err := workflow.NewEngine(comp, grid, aoi, session.New(nil), opts)
	if err != nil {
		return nil, err
	}
	monitoring.Logf("[lulc] study: %.1f ha, %dx%d grid, %d scenes, %d samples, years %v",
		aoi.AreaHa(), grid.Width, grid.Height, src.Len(), len(samples), opts.Years)
	return &study{cfg: cfg, engine: engine, samples: samples}, nil
}
