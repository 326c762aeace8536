// Package plugins exposes constructors for the bundled endpoint groups.
package plugins

import (
	"github.com/SnowzyTech/regime/plugin"
	"github.com/SnowzyTech/regime/plugins/contact"
	"github.com/SnowzyTech/regime/plugins/newsletter"
	"github.com/SnowzyTech/regime/plugins/orders"
	"github.com/SnowzyTech/regime/plugins/products"
	"github.com/SnowzyTech/regime/plugins/testimonials"
)

func Contact(opts contact.Options) plugin.Plugin {
	return contact.New(opts)
}

func Newsletter() plugin.Plugin {
	return newsletter.New()
}

func Testimonials() plugin.Plugin {
	return testimonials.New()
}

func Products() plugin.Plugin {
	return products.New()
}

func Orders(opts orders.Options) plugin.Plugin {
	return orders.New(opts)
}
