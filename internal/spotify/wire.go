package spotify

import (
	"github.com/Arunteja27/code-spa-sub000/internal/core"
)

// Wire shapes for the player endpoints. Only the fields the core consumes
// are decoded.

type trackObject struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	URI        string `json:"uri"`
	DurationMs int    `json:"duration_ms"`
	Artists    []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name   string `json:"name"`
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
}

func (t *trackObject) toTrack() core.Track {
	track := core.Track{
		ID:         t.ID,
		Name:       t.Name,
		URI:        t.URI,
		DurationMs: t.DurationMs,
		Album:      t.Album.Name,
	}
	for i, artist := range t.Artists {
		if i > 0 {
			track.Artist += ", "
		}
		track.Artist += artist.Name
	}
	if len(t.Album.Images) > 0 {
		track.ImageURL = t.Album.Images[0].URL
	}
	return track
}

type playerStateResponse struct {
	IsPlaying  bool `json:"is_playing"`
	ProgressMs int  `json:"progress_ms"`
	Device     struct {
		Name          string `json:"name"`
		VolumePercent int    `json:"volume_percent"`
	} `json:"device"`
	Item *trackObject `json:"item"`
}

func (r *playerStateResponse) toState() *core.PlaybackState {
	state := &core.PlaybackState{
		IsPlaying:     r.IsPlaying,
		ProgressMs:    r.ProgressMs,
		VolumePercent: r.Device.VolumePercent,
		DeviceName:    r.Device.Name,
	}
	if r.Item != nil {
		track := r.Item.toTrack()
		state.Track = &track
	}
	return state
}

type devicesResponse struct {
	Devices []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Type          string `json:"type"`
		IsActive      bool   `json:"is_active"`
		IsRestricted  bool   `json:"is_restricted"`
		VolumePercent int    `json:"volume_percent"`
	} `json:"devices"`
}

func (r *devicesResponse) toDevices() []core.Device {
	devices := make([]core.Device, 0, len(r.Devices))
	for _, d := range r.Devices {
		devices = append(devices, core.Device{
			ID:            d.ID,
			Name:          d.Name,
			Type:          d.Type,
			Active:        d.IsActive,
			Restricted:    d.IsRestricted,
			VolumePercent: d.VolumePercent,
		})
	}
	return devices
}
