package dto

type UploadURLsRequest struct {
	PhotographerSlug string   `json:"photographer_slug" binding:"required"`
	Names            []string `json:"names" binding:"required"`
	Folder           string   `json:"folder"`
}

type UploadURLEntry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type UploadURLsResponse struct {
	URLs []UploadURLEntry `json:"urls"`
}

type DeletePrefixRequest struct {
	Prefix string `json:"prefix" binding:"required"`
}

type DeletePrefixResponse struct {
	DeletedObjects int64 `json:"deleted_objects"`
	DeletedAssets  int64 `json:"deleted_assets"`
}
