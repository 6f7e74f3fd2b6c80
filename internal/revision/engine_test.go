package revision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kombatmoto/backend/internal/domain"
	"kombatmoto/backend/internal/notify"
)

func TestIsDueWindow(t *testing.T) {
	e := NewEngine(3000, 2500, notify.NewBuilder(""))

	cases := map[int]bool{
		0:     false,
		2500:  false,
		2501:  true,
		2999:  true,
		3000:  false,
		5600:  true,
		8700:  true,
		12100: false,
	}
	for km, want := range cases {
		assert.Equal(t, want, e.IsDue(km), "km %d", km)
	}
}

func TestNextRevisionKm(t *testing.T) {
	e := NewEngine(3000, 2500, notify.NewBuilder(""))
	assert.Equal(t, 3000, e.NextRevisionKm(2600))
	assert.Equal(t, 9000, e.NextRevisionKm(8700))
	assert.Equal(t, 6000, e.NextRevisionKm(3000))
}

func TestNewEngineFallsBackOnInvalidWindow(t *testing.T) {
	e := NewEngine(0, 9000, notify.NewBuilder(""))
	assert.Equal(t, DefaultIntervalKm, e.intervalKm)
	assert.Equal(t, DefaultWindowKm, e.windowKm)
}

func TestDueBuildsInvitationClosestFirst(t *testing.T) {
	e := NewEngine(3000, 2500, notify.NewBuilder("Kombat Moto Peças"))
	customers := map[int64]domain.Customer{
		1: {ID: 1, Name: "João", WhatsApp: "(11) 98888-7777"},
		2: {ID: 2, Name: "Maria", WhatsApp: "11 97777-6666"},
	}
	motos := []domain.Motorcycle{
		{ID: 1, CustomerID: 1, Model: "Honda CG 160", Plate: "ABC1D23", CurrentKm: 8600},
		{ID: 2, CustomerID: 2, Model: "Yamaha Fazer 250", Plate: "XYZ9K87", CurrentKm: 5900},
		{ID: 3, CustomerID: 2, Model: "Biz", Plate: "BIZ0A00", CurrentKm: 1200},
		{ID: 4, CustomerID: 99, Model: "Orfã", Plate: "ORF0A00", CurrentKm: 2900},
	}

	due := e.Due(motos, customers)
	require.Len(t, due, 2)
	assert.Equal(t, int64(2), due[0].Motorcycle.ID)
	assert.Equal(t, 100, due[0].KmRemaining)
	assert.Equal(t, 6000, due[0].NextRevisionKm)
	assert.Equal(t,
		"Olá Maria, aqui é da Kombat Moto Peças. Sua Yamaha Fazer 250 (Placa XYZ9K87) está com a revisão de 6000 km próxima. Vamos agendar?",
		due[0].Message)
	assert.Contains(t, due[0].Link, "https://wa.me/11977776666?text=")
	assert.Equal(t, int64(1), due[1].Motorcycle.ID)

	assert.Equal(t, 3, e.Count(motos))
}
