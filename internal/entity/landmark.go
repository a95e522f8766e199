package entity

// LandmarkPoint is one labeled body point as sent by the pose estimator.
// Coordinates are pointers so an absent value can be told apart from zero.
type LandmarkPoint struct {
	Name string   `json:"name" validate:"required"`
	X    *float64 `json:"x" validate:"required"`
	Y    *float64 `json:"y" validate:"required"`
	Z    *float64 `json:"z" validate:"required"`
}

type LandmarkFrame struct {
	Landmarks []LandmarkPoint `json:"landmarks" validate:"required,min=1,dive"`
}

type LandmarkPayload struct {
	Frames []LandmarkFrame `json:"frames" validate:"required,min=1,dive"`
}

type Feedback struct {
	Frame int    `json:"frame"`
	Text  string `json:"text"`
}
