package batch

import "github.com/lehigh-university-libraries/retoucher/internal/models"

// Progress counts items by status.
type Progress struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Done       int `json:"done"`
	Failed     int `json:"failed"`
}

// Fraction is the share of items that reached an outcome, done or failed.
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Done+p.Failed) / float64(p.Total)
}

// Progress tallies the current item states.
func (p *Pipeline) Progress() Progress {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pr := Progress{Total: len(p.items)}
	for _, item := range p.items {
		switch item.Status {
		case models.BatchPending:
			pr.Pending++
		case models.BatchProcessing:
			pr.Processing++
		case models.BatchDone:
			pr.Done++
		case models.BatchError:
			pr.Failed++
		}
	}
	return pr
}
