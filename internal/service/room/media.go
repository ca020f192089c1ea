package room

// Media is the active selection of a room. The set of implementations is
// closed; consumers switch over all four.
type Media interface {
	isMedia()
}

type EmptyMedia struct{}

type BlobMedia struct {
	VideoId string
}

type YoutubeMedia struct {
	YoutubeId string
	URL       string
	Title     string
}

type ExternalMedia struct {
	URL      string
	Title    string
	Provider ProviderInsight
}

func (EmptyMedia) isMedia()    {}
func (BlobMedia) isMedia()     {}
func (YoutubeMedia) isMedia()  {}
func (ExternalMedia) isMedia() {}

// mediaPayload projects the room's media into its wire form. A blob
// selection that no longer resolves is reported as no media.
func (r *roomState) mediaPayload() *MediaPayload {
	switch m := r.media.(type) {
	case EmptyMedia:
		return nil
	case BlobMedia:
		idx := r.videoIndex(m.VideoId)
		if idx < 0 {
			return nil
		}
		v := r.playlist[idx]
		return &MediaPayload{
			Type:           "blob",
			Id:             v.Id,
			FileName:       v.FileName,
			FileURL:        v.FileURL,
			UploadedByName: v.UploadedByName,
			UploadedAt:     v.UploadedAt,
		}
	case YoutubeMedia:
		return &MediaPayload{
			Type:      "youtube",
			YoutubeId: m.YoutubeId,
			URL:       m.URL,
			Title:     m.Title,
		}
	case ExternalMedia:
		provider := m.Provider
		return &MediaPayload{
			Type:     "external",
			URL:      m.URL,
			Title:    m.Title,
			Provider: &provider,
		}
	default:
		panic("room: unknown media variant")
	}
}

// currentVideoId is set only while a blob item is selected.
func (r *roomState) currentVideoId() *string {
	switch m := r.media.(type) {
	case BlobMedia:
		id := m.VideoId
		return &id
	case EmptyMedia, YoutubeMedia, ExternalMedia:
		return nil
	default:
		panic("room: unknown media variant")
	}
}
