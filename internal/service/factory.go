package service

// Services groups the application services built at startup.
type Services struct {
	deps SurveyDeps
	opts SurveyOptions
}

func NewServices(deps SurveyDeps, opts SurveyOptions) *Services {
	return &Services{deps: deps, opts: opts}
}

func (s *Services) Survey() SurveyService {
	return NewSurveyService(s.deps, s.opts)
}
