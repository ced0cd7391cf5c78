package domain

type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type WatchProvider struct {
	ProviderID      int    `json:"providerId"`
	ProviderName    string `json:"providerName"`
	LogoPath        string `json:"logoPath,omitempty"`
	DisplayPriority int    `json:"displayPriority"`
}

// Taxonomy holds the genre and watch-provider reference lists for one kind.
type Taxonomy struct {
	Genres    []Genre         `json:"genres"`
	Providers []WatchProvider `json:"providers"`
}

// GenreName returns the name of the genre with the given id, or "".
func (t Taxonomy) GenreName(id int) string {
	for _, genre := range t.Genres {
		if genre.ID == id {
			return genre.Name
		}
	}
	return ""
}

func (t Taxonomy) ProviderIDs() []int {
	ids := make([]int, 0, len(t.Providers))
	for _, provider := range t.Providers {
		ids = append(ids, provider.ProviderID)
	}
	return ids
}
