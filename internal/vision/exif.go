package vision

import (
	"bytes"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
)

// exifMetadata groups the interesting EXIF fields by category. Images
// without EXIF (PNG, most screenshots) yield nil.
func exifMetadata(data []byte) map[string]any {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil || x == nil {
		return nil
	}
	out := make(map[string]any)
	group := func(name string, fields map[string]any) {
		if len(fields) > 0 {
			out[name] = fields
		}
	}

	camera := map[string]any{}
	putString(x, camera, "make", exif.Make)
	putString(x, camera, "model", exif.Model)
	putString(x, camera, "software", exif.Software)
	group("camera", camera)

	settings := map[string]any{}
	putFloat(x, settings, "f_number", exif.FNumber)
	putRatString(x, settings, "exposure_time", exif.ExposureTime)
	putInt(x, settings, "iso", exif.ISOSpeedRatings)
	putFloat(x, settings, "focal_length", exif.FocalLength)
	putInt(x, settings, "flash", exif.Flash)
	group("settings", settings)

	gps := map[string]any{}
	if lat, lon, err := x.LatLong(); err == nil {
		gps["latitude"] = lat
		gps["longitude"] = lon
	}
	putFloat(x, gps, "altitude", exif.GPSAltitude)
	group("gps", gps)

	datetime := map[string]any{}
	putString(x, datetime, "original", exif.DateTimeOriginal)
	putString(x, datetime, "digitized", exif.DateTimeDigitized)
	group("datetime", datetime)

	img := map[string]any{}
	putInt(x, img, "orientation", exif.Orientation)
	putFloat(x, img, "x_resolution", exif.XResolution)
	putFloat(x, img, "y_resolution", exif.YResolution)
	if t, err := x.Get(exif.ColorSpace); err == nil {
		if v, err := t.Int(0); err == nil {
			img["color_space"] = colorSpace(v)
		}
	}
	group("image", img)

	lens := map[string]any{}
	putString(x, lens, "model", exif.LensModel)
	putString(x, lens, "make", exif.LensMake)
	group("lens", lens)

	if len(out) == 0 {
		return nil
	}
	return out
}

func putString(x *exif.Exif, m map[string]any, key string, f exif.FieldName) {
	t, err := x.Get(f)
	if err != nil {
		return
	}
	s, err := t.StringVal()
	if err != nil {
		s = t.String()
	}
	s = strings.TrimSpace(strings.Trim(s, "\x00\""))
	if s != "" {
		m[key] = s
	}
}

func putFloat(x *exif.Exif, m map[string]any, key string, f exif.FieldName) {
	t, err := x.Get(f)
	if err != nil {
		return
	}
	r, err := t.Rat(0)
	if err != nil {
		return
	}
	v, _ := r.Float64()
	m[key] = v
}

func putRatString(x *exif.Exif, m map[string]any, key string, f exif.FieldName) {
	t, err := x.Get(f)
	if err != nil {
		return
	}
	if r, err := t.Rat(0); err == nil {
		m[key] = r.RatString()
	}
}

func putInt(x *exif.Exif, m map[string]any, key string, f exif.FieldName) {
	t, err := x.Get(f)
	if err != nil {
		return
	}
	if v, err := t.Int(0); err == nil {
		m[key] = v
	}
}

func colorSpace(v int) string {
	switch v {
	case 1:
		return "sRGB"
	case 0xFFFF:
		return "Uncalibrated"
	default:
		return "Unknown"
	}
}
