package noise

import "testing"

func TestGaussianMechanismType(t *testing.T) {
	if Gaussian().MechanismType() != GaussianNoise {
		t.Errorf("Gaussian().MechanismType() = %v, want GaussianNoise", Gaussian().MechanismType())
	}
}

func TestGaussianAddNoiseFloat64RequiresDelta(t *testing.T) {
	n := Gaussian()
	if _, err := n.AddNoiseFloat64(0, 1, 1, 1, 0); err == nil {
		t.Errorf("AddNoiseFloat64 with delta=0 on Gaussian got nil error, want error")
	}
	if _, err := n.AddNoiseFloat64(0, 1, 1, 1, 1e-5); err != nil {
		t.Errorf("AddNoiseFloat64 with valid delta got error: %v", err)
	}
}

func TestGaussianAddNoiseIsCentered(t *testing.T) {
	n := Gaussian()
	const trials = 20000
	sum := 0.0
	for i := 0; i < trials; i++ {
		got, err := n.AddNoiseFloat64(10, 1, 1, 1, 1e-5)
		if err != nil {
			t.Fatalf("AddNoiseFloat64: %v", err)
		}
		sum += got
	}
	mean := sum / trials
	if mean < 8 || mean > 12 {
		t.Errorf("mean of noised samples = %f, want close to 10", mean)
	}
}

func TestGaussianConfidenceIntervalContainsNoisedValue(t *testing.T) {
	n := Gaussian()
	ci, err := n.ConfidenceIntervalFloat64(5, 1, 1, 1, 1e-5, 0.1)
	if err != nil {
		t.Fatalf("ConfidenceIntervalFloat64: %v", err)
	}
	if ci.LowerBound > 5 || ci.UpperBound < 5 {
		t.Errorf("ConfidenceInterval = %+v, want to contain the noised value 5", ci)
	}
	if ci.LowerBound > ci.UpperBound {
		t.Errorf("ConfidenceInterval lower bound %f > upper bound %f", ci.LowerBound, ci.UpperBound)
	}
}
