package stockholm

import "github.com/caparker/openaq-fetch/internal/airquality"

// stations holds the positions SLB publishes for its measuring sites.
// Renamed and misspelled site labels seen on the page are kept as aliases.
var stations = airquality.CoordinateTable{
	"Högdalen":                       {Latitude: 59.26086482, Longitude: 18.06166762},
	"Gävle Södra Kungsgatan":         {Latitude: 60.67155223, Longitude: 17.14691497},
	"59.83238423, 18.63132007":       {Latitude: 59.83238423, Longitude: 18.63132007},
	"Brännkyrkaskolan":               {Latitude: 59.30426591, Longitude: 18.0176204},
	"Töjnaskolan":                    {Latitude: 59.42370559, Longitude: 17.92887634},
	"Norr Malma (regional bakgrund)": {Latitude: 59.83171574, Longitude: 18.63317244},
	"Regional bakgrund (Norr Malma)": {Latitude: 59.83171574, Longitude: 18.63317244},
	"Torkel Knutssonsgatan (tak)":    {Latitude: 59.3160056, Longitude: 18.0578016},
	"Uppsala Marsta":                 {Latitude: 59.92596545, Longitude: 17.58700716},
	"E4":                             {Latitude: 59.48583073, Longitude: 17.91964065},
	"Hornsgatan":                     {Latitude: 59.31713214, Longitude: 18.04878744},
	"Sveavägen":                      {Latitude: 59.34516113, Longitude: 18.05428175},
	"Folkungagatan":                  {Latitude: 59.31462368, Longitude: 18.07585555},
	"Hågelbyleden Botkyrka":          {Latitude: 59.23705806, Longitude: 17.83833241},
	"Gröndalsskolan":                 {Latitude: 59.31349142, Longitude: 18.00469473},
	"Fleminggatan (projekt)":         {Latitude: 59.33375997, Longitude: 18.03684915},
	"E4 Sollentuna Häggvik":          {Latitude: 59.44353901, Longitude: 17.92236122},
	"Norrlandsgatan":                 {Latitude: 59.33635627, Longitude: 18.07062632},
	"Södertälje Turingegatan":        {Latitude: 59.19812352, Longitude: 17.62108719},
	"Ekmansväg":                      {Latitude: 59.48900019, Longitude: 17.92020954},
	"Eriksbergsskolan":               {Latitude: 59.41018492, Longitude: 17.95779851},
	"Falun, Svärdsjögatan":           {Latitude: 60.60798503, Longitude: 15.63367903},
	"Södertalje, Birkakorset":        {Latitude: 59.20135294, Longitude: 17.63475503},
	"E4/E20 Lilla Essingen":          {Latitude: 59.32551867, Longitude: 18.00396061},
	"Lilla Essingen (E4/E20)":        {Latitude: 59.32551867, Longitude: 18.00396061},
	"Uppsala Kungsgatan":             {Latitude: 59.85953006, Longitude: 17.64248414},
	"Urban bakgrund (Uppsala)":       {Latitude: 59.86046, Longitude: 17.63789},
	"Urban bakgrund (Stockholm)":     {Latitude: 59.315891, Longitude: 18.057991},
	"Sankt Eriksgatan":               {Latitude: 59.338921, Longitude: 18.035773},
	"Solna Råsundavägen":             {Latitude: 59.362291, Longitude: 17.992711},
	"Sollentuna Danderydsvägen":      {Latitude: 59.44575, Longitude: 17.952473},
	"Botkyrka Hågelbyleden":          {Latitude: 59.236914, Longitude: 17.838365},
	"Sollentuna Häggvik (E4)":        {Latitude: 59.44358, Longitude: 17.922494},
	"Skonertvägen (E4/E20)":          {Latitude: 59.313251, Longitude: 18.00388},
	"St Erikgsgatan":                 {Latitude: 59.3387558, Longitude: 18.0357015},
	"Råsndavägen, Solna":             {Latitude: 59.3659396, Longitude: 17.9995942},
	"Tulegatan, Sundbyberg":          {Latitude: 59.3667459, Longitude: 17.9688665},
	"Danderydsvägen":                 {Latitude: 59.4081664, Longitude: 18.0636322},
	"Kungsgatan, Uppsala":            {Latitude: 59.853185, Longitude: 17.653329},
	"Kungsgatan, Norrköping":         {Latitude: 58.590397, Longitude: 16.178606},
	"Hamngatan, Linköping":           {Latitude: 58.40878, Longitude: 15.631343},
	"Österväg, Visby":                {Latitude: 57.637377, Longitude: 18.301129},
	"St Eriksgatan":                  {Latitude: 59.334351, Longitude: 18.031951},
	"Valhallavägen":                  {Latitude: 59.348618, Longitude: 18.062386},
	"Råsundavägen":                   {Latitude: 59.363839, Longitude: 18.019706},
	"Tulegatan":                      {Latitude: 60.605031, Longitude: 16.762106},
	"Kungsgatan, Gävle":              {Latitude: 59.363839, Longitude: 18.019706},
}
