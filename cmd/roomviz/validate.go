package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yungbote/roomviz-backend/internal/modules/design/geometry"
)

var (
	validateWidth      int
	validateHeight     int
	validateNormalized bool
	validateMinArea    float64
)

var validateCmd = &cobra.Command{
	Use:   "validate X1,Y1 X2,Y2 X3,Y3 ...",
	Short: "Check a polygon the way the API does",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().IntVar(&validateWidth, "width", 0, "image width in pixels")
	validateCmd.Flags().IntVar(&validateHeight, "height", 0, "image height in pixels")
	validateCmd.Flags().BoolVar(&validateNormalized, "normalized", false, "points are in [0,1] instead of pixels")
	validateCmd.Flags().Float64Var(&validateMinArea, "min-area", geometry.MinArea, "minimum area in square pixels")
	_ = validateCmd.MarkFlagRequired("width")
	_ = validateCmd.MarkFlagRequired("height")
	rootCmd.AddCommand(validateCmd)
}

// parsePoints accepts "x,y" pairs or a flat comma separated list.
func parsePoints(args []string) ([]float64, error) {
	var out []float64
	for _, arg := range args {
		for _, field := range strings.Split(arg, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("bad coordinate %q: %w", field, err)
			}
			out = append(out, v)
		}
	}
	return out, nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	if validateWidth <= 0 || validateHeight <= 0 {
		return fmt.Errorf("width and height must be positive")
	}
	points, err := parsePoints(args)
	if err != nil {
		return err
	}
	w, h := float64(validateWidth), float64(validateHeight)
	if validateNormalized {
		points = geometry.Denormalize(points, w, h)
	}
	res := geometry.Validator{MinArea: validateMinArea}.Validate(points, w, h)
	out := struct {
		geometry.Result
		Normalized []float64 `json:"normalized,omitempty"`
	}{Result: res}
	if res.Valid {
		out.Normalized = geometry.Normalize(points, w, h)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	if !res.Valid {
		return fmt.Errorf("invalid polygon: %s", res.Reason)
	}
	return nil
}
