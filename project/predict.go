// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package project

import (
	"context"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"

	"github.com/diffeo/go-visionclient/platform"
	"github.com/diffeo/go-visionclient/restdata"
)

// Prediction is the platform's response to a prediction request.  Its
// layout depends on the project's tasks, so it is kept as the raw
// JSON document and read by path.
type Prediction struct {
	Raw []byte
}

// PredictedLabel is one label assigned to one predicted shape.
type PredictedLabel struct {
	ID          string
	Name        string
	Probability float64

	// Shape is the shape type, such as "RECTANGLE".
	Shape string
}

// Get returns the value at a gjson path, such as
// "predictions.0.shape.width".
func (p *Prediction) Get(path string) gjson.Result {
	return gjson.GetBytes(p.Raw, path)
}

// Count returns the number of predicted shapes.
func (p *Prediction) Count() int {
	return int(p.Get("predictions.#").Int())
}

// Labels flattens every label of every predicted shape.
func (p *Prediction) Labels() []PredictedLabel {
	var labels []PredictedLabel
	p.Get("predictions").ForEach(func(_, prediction gjson.Result) bool {
		shape := prediction.Get("shape.type").String()
		prediction.Get("labels").ForEach(func(_, label gjson.Result) bool {
			labels = append(labels, PredictedLabel{
				ID:          label.Get("id").String(),
				Name:        label.Get("name").String(),
				Probability: label.Get("probability").Float(),
				Shape:       shape,
			})
			return true
		})
		return true
	})
	return labels
}

// Predict runs a project's active pipeline on an image file.
func (c *Client) Predict(ctx context.Context, projectID, path string) (*Prediction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	var raw []byte
	err = c.Transport.PostTo(ctx, restdata.PredictURL, platform.Vars{"project_id": projectID}, &platform.Form{
		Files: []platform.FormFile{{
			Field:    "file",
			Filename: filepath.Base(path),
			Content:  f,
			Size:     info.Size(),
		}},
	}, &raw)
	if err != nil {
		return nil, err
	}
	return &Prediction{Raw: raw}, nil
}
