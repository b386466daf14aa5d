package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yungbote/roomviz-backend/internal/modules/design/geometry"
	"github.com/yungbote/roomviz-backend/internal/modules/design/marker"
)

var (
	markersImage   string
	markersRegions string
	markersOut     string
)

var markersCmd = &cobra.Command{
	Use:   "markers",
	Short: "Draw the labeled region overlay the image model receives",
	RunE:  runMarkers,
}

func init() {
	markersCmd.Flags().StringVar(&markersImage, "image", "", "room photo (png, jpeg or webp)")
	markersCmd.Flags().StringVar(&markersRegions, "regions", "", "JSON file with [{label, kind, points}] in normalized coordinates")
	markersCmd.Flags().StringVarP(&markersOut, "out", "o", "markers.png", "output PNG path")
	_ = markersCmd.MarkFlagRequired("image")
	_ = markersCmd.MarkFlagRequired("regions")
	rootCmd.AddCommand(markersCmd)
}

type regionFile struct {
	Label  string      `json:"label"`
	Kind   marker.Kind `json:"kind"`
	Points []float64   `json:"points"`
}

func runMarkers(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(markersImage)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	base, err := marker.Decode(raw)
	if err != nil {
		return err
	}
	rawRegions, err := os.ReadFile(markersRegions)
	if err != nil {
		return fmt.Errorf("read regions: %w", err)
	}
	var in []regionFile
	if err := json.Unmarshal(rawRegions, &in); err != nil {
		return fmt.Errorf("parse regions: %w", err)
	}

	b := base.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	regions := make([]marker.Region, 0, len(in))
	for _, r := range in {
		kind := r.Kind
		if kind == "" {
			kind = marker.KindWall
		}
		native := geometry.Denormalize(r.Points, w, h)
		if res := geometry.Validate(native, w, h); !res.Valid {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipping %q: %s\n", r.Label, res.Reason)
			continue
		}
		regions = append(regions, marker.Region{Label: r.Label, Kind: kind, Points: native})
	}

	renderer, err := marker.NewRenderer()
	if err != nil {
		return err
	}
	png, err := marker.EncodePNG(renderer.Render(base, regions))
	if err != nil {
		return err
	}
	if err := os.WriteFile(markersOut, png, 0o644); err != nil {
		return fmt.Errorf("write overlay: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d regions)\n", markersOut, len(regions))
	return nil
}
